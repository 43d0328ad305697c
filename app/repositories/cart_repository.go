package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/database"
)

// CartRepository stores shopping-cart positions.
type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Add(ctx context.Context, p *models.CartPosition) error {
	if err := database.Conn(ctx, r.db).Create(p).Error; err != nil {
		return fmt.Errorf("repositories: add cart position: %w", err)
	}
	return nil
}

func (r *CartRepository) Remove(ctx context.Context, id uint) error {
	res := database.Conn(ctx, r.db).Delete(&models.CartPosition{}, id)
	if res.Error != nil {
		return fmt.Errorf("repositories: remove cart position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByCustomer returns the customer's positions, oldest first.
func (r *CartRepository) FindByCustomer(ctx context.Context, customerID uint) ([]models.CartPosition, error) {
	var ps []models.CartPosition
	err := database.Conn(ctx, r.db).Where("customer_id = ?", customerID).Order("id").Find(&ps).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: cart of %d: %w", customerID, err)
	}
	return ps, nil
}
