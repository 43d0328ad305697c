package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

// FetchMode selects which associations are loaded with a customer.
type FetchMode int

const (
	CustomerOnly FetchMode = iota
	WithOrders
	WithComplaints
	WithAll
)

// editableColumns are written by Merge. Keys, kind and associations are not.
var editableColumns = []string{
	"category", "discount", "revenue", "since", "newsletter", "remarks",
	"private_marital_status", "private_gender", "private_hobbies",
	"version", "updated_at",
}

// CustomerRepository persists the customer aggregate.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *CustomerRepository) query(ctx context.Context, mode FetchMode) *gorm.DB {
	q := r.conn(ctx).Model(&models.Customer{})
	if mode == WithOrders || mode == WithAll {
		q = q.Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
			Preload("Orders.Lines", func(db *gorm.DB) *gorm.DB { return db.Order("idx") })
	}
	if mode == WithComplaints || mode == WithAll {
		q = q.Preload("Complaints", func(db *gorm.DB) *gorm.DB { return db.Order("date, number") })
	}
	return q
}

// loaded applies the state every freshly read customer carries. The terms
// flag is not persisted; a stored customer has accepted them.
func loaded(cs ...*models.Customer) {
	for _, c := range cs {
		c.TermsAccepted = true
	}
}

func (r *CustomerRepository) first(q *gorm.DB) (*models.Customer, error) {
	var c models.Customer
	if err := q.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repositories: find customer: %w", err)
	}
	loaded(&c)
	return &c, nil
}

func (r *CustomerRepository) list(q *gorm.DB) ([]*models.Customer, error) {
	var cs []*models.Customer
	if err := q.Order("id").Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("repositories: list customers: %w", err)
	}
	loaded(cs...)
	return cs, nil
}

// FindByID returns the customer with id, or ErrNotFound.
func (r *CustomerRepository) FindByID(ctx context.Context, id uint, mode FetchMode) (*models.Customer, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	return r.first(r.query(ctx, mode).Where("id = ?", id))
}

// FindByLoginName returns the customer mirroring loginName, or ErrNotFound.
func (r *CustomerRepository) FindByLoginName(ctx context.Context, loginName string, mode FetchMode) (*models.Customer, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	return r.first(r.query(ctx, mode).Where("login_name = ?", loginName))
}

// FindByLoginNames returns the customers for the given login names, by id.
func (r *CustomerRepository) FindByLoginNames(ctx context.Context, loginNames []string, mode FetchMode) ([]*models.Customer, error) {
	if len(loginNames) == 0 {
		return nil, nil
	}
	defer metrics.ObserveDBQuery("select", time.Now())
	return r.list(r.query(ctx, mode).Where("login_name IN ?", loginNames))
}

// FindByOrderID returns the customer owning order orderID, or ErrNotFound.
func (r *CustomerRepository) FindByOrderID(ctx context.Context, orderID uint) (*models.Customer, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	sub := r.conn(ctx).Model(&models.Order{}).Select("customer_id").Where("id = ?", orderID)
	return r.first(r.query(ctx, CustomerOnly).Where("id = (?)", sub))
}

// FindAll returns every customer ordered by id.
func (r *CustomerRepository) FindAll(ctx context.Context, mode FetchMode) ([]*models.Customer, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	return r.list(r.query(ctx, mode))
}

// FindSince returns customers whose customer-since date is since or later.
func (r *CustomerRepository) FindSince(ctx context.Context, since time.Time) ([]*models.Customer, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	return r.list(r.query(ctx, CustomerOnly).Where("since >= ?", since))
}

// IDsByPrefix returns the ids whose decimal form starts with prefix.
func (r *CustomerRepository) IDsByPrefix(ctx context.Context, prefix string) ([]uint, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	var ids []uint
	if err := r.conn(ctx).Model(&models.Customer{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("repositories: customer ids: %w", err)
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.HasPrefix(strconv.FormatUint(uint64(id), 10), prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

// FindByIDPrefix returns the customers whose id starts with prefix.
func (r *CustomerRepository) FindByIDPrefix(ctx context.Context, prefix string) ([]*models.Customer, error) {
	ids, err := r.IDsByPrefix(ctx, prefix)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return r.list(r.query(ctx, CustomerOnly).Where("id IN ?", ids))
}

// LoginNames returns every stored login name, sorted.
func (r *CustomerRepository) LoginNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.conn(ctx).Model(&models.Customer{}).Pluck("login_name", &names).Error; err != nil {
		return nil, fmt.Errorf("repositories: login names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a customer row with id is present.
func (r *CustomerRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.conn(ctx).Model(&models.Customer{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("repositories: customer exists: %w", err)
	}
	return n > 0, nil
}

// LoginNameOf returns the login name stored for the customer id.
func (r *CustomerRepository) LoginNameOf(ctx context.Context, id uint) (string, error) {
	var names []string
	err := r.conn(ctx).Model(&models.Customer{}).Where("id = ?", id).Limit(1).Pluck("login_name", &names).Error
	if err != nil {
		return "", fmt.Errorf("repositories: customer login name: %w", err)
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[0], nil
}

// Create inserts the customer row only; associations are written by their
// own repositories.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	defer metrics.ObserveDBQuery("insert", time.Now())
	c.Version = 0
	err := r.conn(ctx).Omit("Orders", "Complaints", "File").Create(c).Error
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("repositories: create customer %s: %w", c.LoginName, ErrDuplicate)
		}
		return fmt.Errorf("repositories: create customer: %w", err)
	}
	return nil
}

// Merge writes the editable fields of c if the stored version still equals
// c.Version, then increments c.Version. It returns ErrVersionConflict when
// the stored version differs and ErrNotFound when the row is gone.
func (r *CustomerRepository) Merge(ctx context.Context, c *models.Customer) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	row := &models.Customer{ID: c.ID}
	row.CopyEditableFrom(c)
	row.Version = c.Version + 1
	row.UpdatedAt = time.Now().UTC()

	res := r.conn(ctx).Model(row).
		Select(editableColumns).
		Where("version = ?", c.Version).
		Updates(row)
	if res.Error != nil {
		return fmt.Errorf("repositories: merge customer %d: %w", c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		ok, err := r.Exists(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	c.Version = row.Version
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// SetFile points the customer at fileID without touching its version.
func (r *CustomerRepository) SetFile(ctx context.Context, customerID, fileID uint) error {
	res := r.conn(ctx).Model(&models.Customer{}).Where("id = ?", customerID).UpdateColumn("file_id", fileID)
	if res.Error != nil {
		return fmt.Errorf("repositories: set file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the customer row together with its complaints and file.
// Orders and cart positions are not touched; callers check them first.
func (r *CustomerRepository) Delete(ctx context.Context, c *models.Customer) error {
	defer metrics.ObserveDBQuery("delete", time.Now())
	db := r.conn(ctx)

	if err := db.Where("customer_id = ?", c.ID).Delete(&models.Complaint{}).Error; err != nil {
		return fmt.Errorf("repositories: delete complaints: %w", err)
	}
	res := db.Delete(&models.Customer{}, c.ID)
	if res.Error != nil {
		return fmt.Errorf("repositories: delete customer %d: %w", c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if c.FileID != nil {
		if err := db.Delete(&models.File{}, *c.FileID).Error; err != nil {
			return fmt.Errorf("repositories: delete file: %w", err)
		}
	}
	return nil
}

// isDuplicate recognises unique-constraint violations across the
// supported drivers.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
