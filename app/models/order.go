package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order belongs to exactly one customer. Idx keeps the customer's orders in
// insertion order.
type Order struct {
	ID         uint            `gorm:"primaryKey"                                        json:"id"`
	CustomerID uint            `gorm:"not null;index"                                    json:"customerId"`
	Idx        int             `gorm:"column:idx;not null"                               json:"-"`
	Shipped    bool            `gorm:"not null;default:false"                            json:"shipped"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null"                       json:"total"`
	Lines      []OrderLine     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"    json:"lines,omitempty" validate:"dive"`
	Version    int             `gorm:"not null"                                          json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// OrderLine references a catalog article by id.
type OrderLine struct {
	ID        uint            `gorm:"primaryKey"                  json:"id"`
	OrderID   uint            `gorm:"not null;index"              json:"-"`
	Idx       int             `gorm:"column:idx;not null"         json:"-"`
	ArticleID uint            `gorm:"not null"                    json:"articleId" validate:"required"`
	Quantity  int             `gorm:"not null"                    json:"quantity"  validate:"min=1"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
}

// Subtotal is quantity × unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AddLine appends l and adds its subtotal to the order total.
func (o *Order) AddLine(l OrderLine) {
	l.Idx = len(o.Lines)
	o.Lines = append(o.Lines, l)
	o.Total = o.Total.Add(l.Subtotal())
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o
}
