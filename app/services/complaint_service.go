package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/logger"
)

// ErrComplaintExists is returned when a complaint with the same number and
// date is already stored.
var ErrComplaintExists = errors.New("services: complaint already exists")

type ComplaintService struct {
	db         *gorm.DB
	customers  *repositories.CustomerRepository
	complaints *repositories.ComplaintRepository
}

func NewComplaintService(db *gorm.DB) *ComplaintService {
	return &ComplaintService{
		db:         db,
		customers:  repositories.NewCustomerRepository(db),
		complaints: repositories.NewComplaintRepository(db),
	}
}

// Save files a complaint for customerID. A zero date means today.
func (s *ComplaintService) Save(ctx context.Context, customerID uint, c *models.Complaint) error {
	if c.Date.IsZero() {
		c.Date = time.Now().UTC().Truncate(24 * time.Hour)
	}
	c.CustomerID = customerID
	if err := models.Validate(c); err != nil {
		return invalid(err)
	}

	return database.Transaction(ctx, s.db, func(ctx context.Context) error {
		ok, err := s.customers.Exists(ctx, customerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if err := s.complaints.Create(ctx, c); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return fmt.Errorf("%w: number %d", ErrComplaintExists, c.Number)
			}
			return err
		}
		logger.WithCtx(ctx).Info("complaint filed", "customer_id", customerID, "number", c.Number)
		return nil
	})
}

// FindByCustomerID returns the customer's complaints ordered by date.
func (s *ComplaintService) FindByCustomerID(ctx context.Context, customerID uint) ([]models.Complaint, error) {
	ok, err := s.customers.Exists(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.complaints.FindByCustomerID(ctx, customerID)
}
