package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

// OrderRepository stores orders and their lines. Orders are not deleted
// with their customer; their presence blocks customer deletion instead.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create appends o to its customer's order list and inserts its lines.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	defer metrics.ObserveDBQuery("insert", time.Now())
	return database.Transaction(ctx, r.db, func(ctx context.Context) error {
		db := database.Conn(ctx, r.db)

		var n int64
		if err := db.Model(&models.Order{}).Where("customer_id = ?", o.CustomerID).Count(&n).Error; err != nil {
			return fmt.Errorf("repositories: count orders: %w", err)
		}
		o.Idx = int(n)
		o.Version = 0
		for i := range o.Lines {
			o.Lines[i].Idx = i
		}
		if err := db.Create(o).Error; err != nil {
			return fmt.Errorf("repositories: create order: %w", err)
		}
		return nil
	})
}

// FindByID returns the order with its lines, or ErrNotFound.
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	var o models.Order
	err := database.Conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find order: %w", err)
	}
	return &o, nil
}

// FindByCustomer returns the customer's orders in insertion order.
func (r *OrderRepository) FindByCustomer(ctx context.Context, customerID uint) ([]models.Order, error) {
	defer metrics.ObserveDBQuery("select", time.Now())
	var orders []models.Order
	err := database.Conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
		Where("customer_id = ?", customerID).
		Order("idx").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: orders of %d: %w", customerID, err)
	}
	return orders, nil
}

// CountByCustomer returns how many orders reference the customer.
func (r *OrderRepository) CountByCustomer(ctx context.Context, customerID uint) (int, error) {
	defer metrics.ObserveDBQuery("count", time.Now())
	var n int64
	err := database.Conn(ctx, r.db).Model(&models.Order{}).Where("customer_id = ?", customerID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("repositories: count orders: %w", err)
	}
	return int(n), nil
}

// Delete removes the order and its lines.
func (r *OrderRepository) Delete(ctx context.Context, id uint) error {
	defer metrics.ObserveDBQuery("delete", time.Now())
	return database.Transaction(ctx, r.db, func(ctx context.Context) error {
		db := database.Conn(ctx, r.db)
		if err := db.Where("order_id = ?", id).Delete(&models.OrderLine{}).Error; err != nil {
			return fmt.Errorf("repositories: delete order lines: %w", err)
		}
		res := db.Delete(&models.Order{}, id)
		if res.Error != nil {
			return fmt.Errorf("repositories: delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
