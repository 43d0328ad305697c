package models

import "time"

// CartPosition is pre-order state. Any position blocks deletion of its customer.
type CartPosition struct {
	ID         uint      `gorm:"primaryKey"     json:"id"`
	CustomerID uint      `gorm:"not null;index" json:"customerId" validate:"required"`
	ArticleID  uint      `gorm:"not null"       json:"articleId"  validate:"required"`
	Quantity   int       `gorm:"not null"       json:"quantity"   validate:"min=1"`
	CreatedAt  time.Time `json:"createdAt"`
}
