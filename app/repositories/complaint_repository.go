package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/database"
)

// ComplaintRepository stores complaints. They are owned by the customer
// and removed with it by CustomerRepository.Delete.
type ComplaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts c. A complaint with the same number and date yields ErrDuplicate.
func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	c.Version = 0
	if err := database.Conn(ctx, r.db).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("repositories: complaint %d: %w", c.Number, ErrDuplicate)
		}
		return fmt.Errorf("repositories: create complaint: %w", err)
	}
	return nil
}

// Exists reports whether a complaint keyed (number, date) is stored.
func (r *ComplaintRepository) Exists(ctx context.Context, number uint, date time.Time) (bool, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&models.Complaint{}).
		Where("number = ? AND date = ?", number, date).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("repositories: complaint exists: %w", err)
	}
	return n > 0, nil
}

// FindByCustomerID returns the customer's complaints ordered by date.
func (r *ComplaintRepository) FindByCustomerID(ctx context.Context, customerID uint) ([]models.Complaint, error) {
	var cs []models.Complaint
	err := database.Conn(ctx, r.db).Where("customer_id = ?", customerID).Order("date, number").Find(&cs).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: complaints of %d: %w", customerID, err)
	}
	return cs, nil
}
