// Package services holds the customer protocols: registration, the
// versioned update, guarded deletion, attachments and the read APIs. Each
// protocol runs in one database transaction with identity store calls
// nested inside it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/event"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
	"github.com/shashiranjanraj/shop/pkg/reqid"
)

// EventCustomerRegistered is fired after a registration has committed.
const EventCustomerRegistered = "customer.registered"

// CustomerRegistered is the payload of EventCustomerRegistered.
type CustomerRegistered struct {
	CustomerID uint
	LoginName  string
	Email      string
}

const defaultSizeLimit = 50 << 20

type CustomerService struct {
	db          *gorm.DB
	customers   *repositories.CustomerRepository
	orders      *repositories.OrderRepository
	carts       *repositories.CartRepository
	files       *repositories.FileRepository
	identities  *identity.Adapter
	sync        *Synchronizer
	attachments *AttachmentWriter
	sizeLimit   int64
}

type Option func(*CustomerService)

// WithAttachmentWriter hands committed attachments to w for durable storage.
func WithAttachmentWriter(w *AttachmentWriter) Option {
	return func(s *CustomerService) { s.attachments = w }
}

// WithSizeLimit caps attachment uploads at n bytes.
func WithSizeLimit(n int64) Option {
	return func(s *CustomerService) {
		if n > 0 {
			s.sizeLimit = n
		}
	}
}

func NewCustomerService(db *gorm.DB, identities *identity.Adapter, opts ...Option) *CustomerService {
	s := &CustomerService{
		db:         db,
		customers:  repositories.NewCustomerRepository(db),
		orders:     repositories.NewOrderRepository(db),
		carts:      repositories.NewCartRepository(db),
		files:      repositories.NewFileRepository(db),
		identities: identities,
		sync:       NewSynchronizer(identities),
		sizeLimit:  defaultSizeLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Registration ─────────────────────────────────────────────────────────────

// Register stores a new customer together with its identity record. Both
// writes happen in one transaction; if the customer insert fails after the
// identity was created, the identity is removed again.
func (s *CustomerService) Register(ctx context.Context, c *models.Customer, id *models.Identity) (out *models.Customer, err error) {
	ctx = reqid.Ensure(ctx)
	start := time.Now()
	defer func() { metrics.ObserveOperation("register", result(err), start) }()

	c = c.Clone()
	if id != nil {
		c.Identity = id.Clone()
	}
	if err := models.ValidateRegistration(c, c.Identity); err != nil {
		return nil, invalid(err)
	}
	log := logger.WithCtx(ctx).With("login_name", c.Identity.LoginName)

	if _, err := s.identities.FindByLoginName(ctx, c.Identity.LoginName); err == nil {
		return nil, ErrLoginNameExists
	} else if !errors.Is(err, identity.ErrNotFound) {
		return nil, err
	}
	if err := s.checkEmail(ctx, c.Identity.Email, c.Identity.LoginName); err != nil {
		return nil, err
	}

	identityCreated := false
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.sync.OnCreate(ctx, c); err != nil {
			return err
		}
		identityCreated = true
		if err := s.customers.Create(ctx, c); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrLoginNameExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		if identityCreated {
			if rerr := s.identities.Remove(ctx, c.LoginName); rerr != nil {
				log.Error("register: identity compensation failed", "error", rerr)
			}
		}
		return nil, err
	}

	log.Info("customer registered", "customer_id", c.ID)
	event.FireAsync(EventCustomerRegistered, CustomerRegistered{
		CustomerID: c.ID,
		LoginName:  c.LoginName,
		Email:      c.Email(),
	})
	return c, nil
}

// ── Update ───────────────────────────────────────────────────────────────────

// Update writes the editable fields of in and its identity payload.
//
// The identity record is written before the versioned merge. When the merge
// fails the identity record is restored from a snapshot, so a LostUpdate
// leaves both stores as they were, unless another update has rewritten the
// identity in the meantime. With alreadyLoaded set the caller vouches
// that the customer exists and the existence check is skipped.
func (s *CustomerService) Update(ctx context.Context, in *models.Customer, alreadyLoaded bool) (out *models.Customer, err error) {
	ctx = reqid.Ensure(ctx)
	start := time.Now()
	defer func() { metrics.ObserveOperation("update", result(err), start) }()
	log := logger.WithCtx(ctx).With("customer_id", in.ID, "version", in.Version)

	// Work on a detached copy and keep the caller's identity payload apart
	// from it; nothing below reloads identity data into c.
	c := in.Clone()
	payload := in.Identity.Clone()
	c.Identity = nil

	if err := models.Validate(c); err != nil {
		return nil, invalid(err)
	}
	if payload != nil {
		if err := models.Validate(payload); err != nil {
			return nil, invalid(err)
		}
	}

	var snapshot, written *models.Identity
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		if !alreadyLoaded {
			cur, err := s.customers.FindByID(ctx, c.ID, repositories.CustomerOnly)
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrConcurrentlyDeleted
			}
			if err != nil {
				return err
			}
			if cur.Version != c.Version {
				return ErrLostUpdate
			}
			c.LoginName = cur.LoginName
		} else if payload != nil {
			stored, err := s.customers.LoginNameOf(ctx, c.ID)
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrConcurrentlyDeleted
			}
			if err != nil {
				return err
			}
			if c.LoginName != "" && c.LoginName != stored {
				return invalid(fmt.Errorf("login name %q cannot be changed", c.LoginName))
			}
			c.LoginName = stored
		}

		if payload == nil {
			return s.merge(ctx, c)
		}
		if c.LoginName == "" {
			c.LoginName = payload.LoginName
		}
		if payload.LoginName != "" && payload.LoginName != c.LoginName {
			return invalid(fmt.Errorf("login name %q cannot be changed", c.LoginName))
		}
		payload.LoginName = c.LoginName

		if err := s.checkEmail(ctx, payload.Email, c.LoginName); err != nil {
			return err
		}

		cur, err := s.identities.FindByLoginName(ctx, c.LoginName)
		if errors.Is(err, identity.ErrNotFound) {
			return ErrConcurrentlyDeleted
		}
		if err != nil {
			return err
		}
		snapshot = cur
		written, err = s.identities.Apply(ctx, payload)
		if err != nil {
			return fmt.Errorf("services: update identity %s: %w", c.LoginName, err)
		}
		return s.merge(ctx, c)
	})
	if err != nil {
		if written != nil {
			restored, rerr := s.identities.Revert(ctx, written, snapshot)
			switch {
			case rerr != nil:
				log.Error("update: identity restore failed", "login_name", snapshot.LoginName, "error", rerr)
			case !restored:
				log.Warn("update: identity changed by another writer, not restored", "login_name", snapshot.LoginName)
			}
		}
		if errors.Is(err, ErrLostUpdate) || errors.Is(err, ErrConcurrentlyDeleted) {
			log.Info("update rejected", "reason", result(err))
		}
		return nil, err
	}

	if err := s.sync.OnLoad(ctx, c); err != nil {
		return nil, err
	}
	log.Debug("customer updated", "new_version", c.Version)
	return c, nil
}

func (s *CustomerService) merge(ctx context.Context, c *models.Customer) error {
	err := s.customers.Merge(ctx, c)
	switch {
	case errors.Is(err, repositories.ErrVersionConflict):
		return ErrLostUpdate
	case errors.Is(err, repositories.ErrNotFound):
		return ErrConcurrentlyDeleted
	}
	return err
}

// checkEmail fails with *EmailExistsError when email belongs to an identity
// other than loginName.
func (s *CustomerService) checkEmail(ctx context.Context, email, loginName string) error {
	ids, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id.LoginName != loginName {
			return &EmailExistsError{Email: email, Owner: id.LoginName}
		}
	}
	return nil
}

// ── Delete ───────────────────────────────────────────────────────────────────

// Delete removes the customer and its identity record. Deleting an absent
// customer succeeds. Orders or cart positions block the delete and leave
// both stores untouched.
func (s *CustomerService) Delete(ctx context.Context, id uint) (err error) {
	ctx = reqid.Ensure(ctx)
	start := time.Now()
	defer func() { metrics.ObserveOperation("delete", result(err), start) }()
	log := logger.WithCtx(ctx).With("customer_id", id)

	var (
		snapshot   *models.Identity
		attachment string
	)
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		c, err := s.customers.FindByID(ctx, id, repositories.WithOrders)
		if errors.Is(err, repositories.ErrNotFound) {
			log.Debug("delete: customer already gone")
			return nil
		}
		if err != nil {
			return err
		}
		if len(c.Orders) > 0 {
			return &HasOrdersError{CustomerID: id, Count: len(c.Orders)}
		}
		positions, err := s.carts.FindByCustomer(ctx, id)
		if err != nil {
			return err
		}
		if len(positions) > 0 {
			return &HasCartPositionsError{CustomerID: id, Positions: positions}
		}

		if c.FileID != nil {
			f, err := s.files.FindByID(ctx, *c.FileID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			if f != nil {
				attachment = f.Filename
			}
		}

		cur, err := s.identities.FindByLoginName(ctx, c.LoginName)
		switch {
		case err == nil:
			snapshot = cur
		case !errors.Is(err, identity.ErrNotFound):
			return err
		}
		if err := s.sync.OnDelete(ctx, c); err != nil {
			return err
		}
		return s.customers.Delete(ctx, c)
	})
	if err != nil {
		if snapshot != nil {
			if rerr := s.identities.Restore(ctx, snapshot); rerr != nil {
				log.Error("delete: identity restore failed", "login_name", snapshot.LoginName, "error", rerr)
			}
		}
		return err
	}

	if attachment != "" && s.attachments != nil {
		s.attachments.Discard(ctx, attachment)
	}
	if snapshot != nil {
		log.Info("customer deleted", "login_name", snapshot.LoginName)
	}
	return nil
}

// ── Attachments ──────────────────────────────────────────────────────────────

// AttachFile stores data as the customer's attachment. An empty mimeType is
// detected from the bytes. The record is committed synchronously; the copy
// on durable storage is written in the background.
func (s *CustomerService) AttachFile(ctx context.Context, customerID uint, data []byte, mimeType string) (out *models.File, err error) {
	ctx = reqid.Ensure(ctx)
	start := time.Now()
	defer func() { metrics.ObserveOperation("attach_file", result(err), start) }()

	if len(data) == 0 {
		return nil, invalid(errors.New("file is empty"))
	}
	if int64(len(data)) > s.sizeLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.sizeLimit)
	}
	var mt models.MimeType
	if mimeType == "" {
		mt, err = models.DetectMimeType(data)
	} else {
		mt, err = models.ParseMimeType(mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMimeType, err)
	}

	f := &models.File{
		Filename: models.AttachmentFilename("Customer", customerID, mt),
		MimeType: mt,
		Kind:     mt.Kind(),
		Data:     data,
	}
	err = database.Transaction(ctx, s.db, func(ctx context.Context) error {
		c, err := s.customers.FindByID(ctx, customerID, repositories.CustomerOnly)
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := s.files.Save(ctx, f); err != nil {
			return err
		}
		if c.FileID == nil || *c.FileID != f.ID {
			return s.customers.SetFile(ctx, customerID, f.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.attachments != nil {
		s.attachments.Submit(ctx, f.Clone())
	}
	return f, nil
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *CustomerService) one(ctx context.Context, c *models.Customer, err error) (*models.Customer, error) {
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.sync.OnLoad(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) many(ctx context.Context, cs []*models.Customer, err error) ([]*models.Customer, error) {
	if err != nil {
		return nil, err
	}
	if err := s.sync.OnLoad(ctx, cs...); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *CustomerService) FindByID(ctx context.Context, id uint, mode repositories.FetchMode) (*models.Customer, error) {
	c, err := s.customers.FindByID(ctx, id, mode)
	return s.one(ctx, c, err)
}

func (s *CustomerService) FindByLoginName(ctx context.Context, loginName string, mode repositories.FetchMode) (*models.Customer, error) {
	c, err := s.customers.FindByLoginName(ctx, loginName, mode)
	return s.one(ctx, c, err)
}

// FindByOrderID returns the customer owning the order.
func (s *CustomerService) FindByOrderID(ctx context.Context, orderID uint) (*models.Customer, error) {
	c, err := s.customers.FindByOrderID(ctx, orderID)
	return s.one(ctx, c, err)
}

// FindByEmailPrefix resolves the prefix in the identity store and returns
// the matching customers.
func (s *CustomerService) FindByEmailPrefix(ctx context.Context, prefix string) ([]*models.Customer, error) {
	ids, err := s.identities.FindByEmailPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.LoginName
	}
	cs, err := s.customers.FindByLoginNames(ctx, names, repositories.CustomerOnly)
	return s.many(ctx, cs, err)
}

func (s *CustomerService) FindByLastName(ctx context.Context, lastName string, mode repositories.FetchMode) ([]*models.Customer, error) {
	names, err := s.identities.FindLoginNamesByLastName(ctx, lastName)
	if err != nil {
		return nil, err
	}
	cs, err := s.customers.FindByLoginNames(ctx, names, mode)
	return s.many(ctx, cs, err)
}

func (s *CustomerService) FindAll(ctx context.Context, mode repositories.FetchMode) ([]*models.Customer, error) {
	cs, err := s.customers.FindAll(ctx, mode)
	return s.many(ctx, cs, err)
}

func (s *CustomerService) FindSince(ctx context.Context, since time.Time) ([]*models.Customer, error) {
	cs, err := s.customers.FindSince(ctx, since)
	return s.many(ctx, cs, err)
}

// IDsByPrefix supports id autocompletion.
func (s *CustomerService) IDsByPrefix(ctx context.Context, prefix string) ([]uint, error) {
	return s.customers.IDsByPrefix(ctx, prefix)
}

// LoginNamesByPrefix supports login name autocompletion.
func (s *CustomerService) LoginNamesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.identities.LoginNamesByPrefix(ctx, prefix)
}
