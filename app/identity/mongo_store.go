package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/shop/app/models"
)

const identityCollection = "identities"

type addressDocument struct {
	PostalCode  string `bson:"postalCode"`
	City        string `bson:"city"`
	Street      string `bson:"street,omitempty"`
	HouseNumber string `bson:"houseNumber,omitempty"`
}

// identityDocument is the stored shape. The login name is the document key,
// which makes it unique without a separate index.
type identityDocument struct {
	LoginName    string          `bson:"_id"`
	PasswordHash string          `bson:"passwordHash,omitempty"`
	FirstName    string          `bson:"firstName,omitempty"`
	LastName     string          `bson:"lastName"`
	Email        string          `bson:"email"`
	Address      addressDocument `bson:"address"`
	Enabled      bool            `bson:"enabled"`
	ExpiresAt    *time.Time      `bson:"expiresAt,omitempty"`
	Roles        []string        `bson:"roles"`
	UpdatedAt    time.Time       `bson:"updatedAt"`
}

func toDocument(id *models.Identity) identityDocument {
	doc := identityDocument{
		LoginName:    id.LoginName,
		PasswordHash: id.PasswordHash,
		FirstName:    id.FirstName,
		LastName:     id.LastName,
		Email:        id.Email,
		Address: addressDocument{
			PostalCode:  id.Address.PostalCode,
			City:        id.Address.City,
			Street:      id.Address.Street,
			HouseNumber: id.Address.HouseNumber,
		},
		Enabled:   id.Enabled,
		ExpiresAt: id.ExpiresAt,
		Roles:     make([]string, 0, len(id.Roles)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, r := range id.Roles {
		doc.Roles = append(doc.Roles, string(r))
	}
	return doc
}

func (d identityDocument) model() *models.Identity {
	id := &models.Identity{
		LoginName:    d.LoginName,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Address: models.Address{
			PostalCode:  d.Address.PostalCode,
			City:        d.Address.City,
			Street:      d.Address.Street,
			HouseNumber: d.Address.HouseNumber,
		},
		Enabled:   d.Enabled,
		ExpiresAt: d.ExpiresAt,
	}
	for _, r := range d.Roles {
		id.Roles = append(id.Roles, models.Role(r))
	}
	return id
}

// MongoStore keeps identities in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// ConnectMongo dials uri, verifies the connection and ensures indexes.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(dialCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("identity/mongo: connect: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("identity/mongo: ping: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.EnsureIndexes(dialCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps an existing client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, col: client.Database(database).Collection(identityCollection)}
}

// EnsureIndexes creates the secondary indexes used by the e-mail and
// last-name lookups.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "lastName", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("identity/mongo: indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Name() string { return "mongo" }

func (s *MongoStore) Get(ctx context.Context, loginName string) (*models.Identity, error) {
	var doc identityDocument
	err := s.col.FindOne(ctx, bson.M{"_id": loginName}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity/mongo: get %s: %w", loginName, err)
	}
	return doc.model(), nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]*models.Identity, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("identity/mongo: find: %w", err)
	}
	var docs []identityDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("identity/mongo: decode: %w", err)
	}
	out := make([]*models.Identity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func prefixFilter(prefix string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) ([]*models.Identity, error) {
	return s.find(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByEmailPrefix(ctx context.Context, prefix string) ([]*models.Identity, error) {
	return s.find(ctx, bson.M{"email": prefixFilter(prefix)})
}

func (s *MongoStore) FindByLastName(ctx context.Context, lastName string) ([]*models.Identity, error) {
	return s.find(ctx, bson.M{"lastName": lastName})
}

func (s *MongoStore) loginNames(ctx context.Context, filter bson.M) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("identity/mongo: login names: %w", err)
	}
	var rows []struct {
		LoginName string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("identity/mongo: decode: %w", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.LoginName
	}
	return out, nil
}

func (s *MongoStore) LoginNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.loginNames(ctx, bson.M{"_id": prefixFilter(prefix)})
}

func (s *MongoStore) ListLoginNames(ctx context.Context) ([]string, error) {
	return s.loginNames(ctx, bson.M{})
}

func (s *MongoStore) Insert(ctx context.Context, id *models.Identity) error {
	_, err := s.col.InsertOne(ctx, toDocument(id))
	if mongo.IsDuplicateKeyError(err) {
		return ErrLoginNameExists
	}
	if err != nil {
		return fmt.Errorf("identity/mongo: insert %s: %w", id.LoginName, err)
	}
	return nil
}

func (s *MongoStore) Replace(ctx context.Context, id *models.Identity) error {
	doc := toDocument(id)
	set := bson.M{
		"passwordHash": doc.PasswordHash,
		"firstName":    doc.FirstName,
		"lastName":     doc.LastName,
		"email":        doc.Email,
		"address":      doc.Address,
		"enabled":      doc.Enabled,
		"updatedAt":    doc.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if doc.ExpiresAt != nil {
		set["expiresAt"] = doc.ExpiresAt
	} else {
		update["$unset"] = bson.M{"expiresAt": ""}
	}

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id.LoginName}, update)
	if err != nil {
		return fmt.Errorf("identity/mongo: replace %s: %w", id.LoginName, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, loginName string) (bool, error) {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": loginName})
	if err != nil {
		return false, fmt.Errorf("identity/mongo: delete %s: %w", loginName, err)
	}
	return res.DeletedCount > 0, nil
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func (s *MongoStore) AddRoles(ctx context.Context, loginName string, roles []models.Role) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": loginName},
		bson.M{"$addToSet": bson.M{"roles": bson.M{"$each": roleStrings(roles)}}})
	if err != nil {
		return fmt.Errorf("identity/mongo: grant %s: %w", loginName, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) RemoveRoles(ctx context.Context, loginName string, roles []models.Role) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": loginName},
		bson.M{"$pull": bson.M{"roles": bson.M{"$in": roleStrings(roles)}}})
	if err != nil {
		return fmt.Errorf("identity/mongo: revoke %s: %w", loginName, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Roles(ctx context.Context, loginName string) ([]models.Role, error) {
	var doc struct {
		Roles []string `bson:"roles"`
	}
	err := s.col.FindOne(ctx, bson.M{"_id": loginName},
		options.FindOne().SetProjection(bson.M{"roles": 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity/mongo: roles %s: %w", loginName, err)
	}
	out := make([]models.Role, len(doc.Roles))
	for i, r := range doc.Roles {
		out[i] = models.Role(r)
	}
	return out, nil
}
