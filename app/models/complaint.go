package models

import "time"

// Complaint is keyed by (Number, Date).
type Complaint struct {
	Number     uint      `gorm:"primaryKey;autoIncrement:false" json:"number" validate:"required"`
	Date       time.Time `gorm:"primaryKey"                     json:"date"   validate:"required"`
	Content    string    `gorm:"size:2000"                      json:"content" validate:"max=2000"`
	CustomerID uint      `gorm:"not null;index"                 json:"customerId"`
	Version    int       `gorm:"not null"                       json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
