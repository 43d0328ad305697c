package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the customer variant tag, stored in the "kind" discriminator column.
type Kind string

const (
	KindPrivate   Kind = "P"
	KindCorporate Kind = "F"
)

type MaritalStatus string

const (
	Single   MaritalStatus = "L"
	Married  MaritalStatus = "VH"
	Divorced MaritalStatus = "G"
	Widowed  MaritalStatus = "VW"
)

type Gender string

const (
	Male   Gender = "M"
	Female Gender = "W"
)

type Hobby string

const (
	HobbySport   Hobby = "S"
	HobbyReading Hobby = "L"
	HobbyTravel  Hobby = "R"
)

// PrivateDetails is the payload of a KindPrivate customer. It is zero for
// corporate customers.
type PrivateDetails struct {
	MaritalStatus MaritalStatus `gorm:"size:2"          json:"maritalStatus,omitempty" validate:"omitempty,oneof=L VH G VW"`
	Gender        Gender        `gorm:"size:1"          json:"gender,omitempty"        validate:"omitempty,oneof=M W"`
	Hobbies       []Hobby       `gorm:"serializer:json" json:"hobbies,omitempty"       validate:"dive,oneof=S L R"`
}

func (p PrivateDetails) IsZero() bool {
	return p.MaritalStatus == "" && p.Gender == "" && len(p.Hobbies) == 0
}

// Customer is the versioned customer aggregate. Identity is not persisted in
// this store; it is attached by the lifecycle synchronizer after every load.
type Customer struct {
	ID            uint            `gorm:"primaryKey"                                  json:"id"`
	Kind          Kind            `gorm:"size:1;not null;index"                       json:"kind"       validate:"oneof=P F"`
	LoginName     string          `gorm:"size:32;not null;uniqueIndex"                json:"loginName"  validate:"max=32"`
	Category      int             `gorm:"not null;default:0"                          json:"category"   validate:"min=0,max=5"`
	Discount      decimal.Decimal `gorm:"type:decimal(5,4);not null"                  json:"discount"`
	Revenue       decimal.Decimal `gorm:"type:decimal(12,2);not null"                 json:"revenue"`
	Since         time.Time       `gorm:"not null"                                    json:"since"      validate:"required"`
	Newsletter    bool            `gorm:"not null;default:false"                      json:"newsletter"`
	TermsAccepted bool            `gorm:"-"                                           json:"termsAccepted"`
	Remarks       string          `gorm:"size:2000"                                   json:"remarks,omitempty" validate:"max=2000"`
	Private       PrivateDetails  `gorm:"embedded;embeddedPrefix:private_"            json:"private"`
	FileID        *uint           `gorm:"index"                                       json:"fileId,omitempty"`
	File          *File           `gorm:"foreignKey:FileID"                           json:"-"                 validate:"-"`
	Orders        []Order         `gorm:"foreignKey:CustomerID"                       json:"orders,omitempty"     validate:"-"`
	Complaints    []Complaint     `gorm:"foreignKey:CustomerID"                       json:"complaints,omitempty" validate:"-"`
	Version       int             `gorm:"not null"                                    json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Identity *Identity `gorm:"-" json:"identity,omitempty" validate:"-"`
}

// NewPrivateCustomer returns a private customer with the defaults applied to
// new registrations.
func NewPrivateCustomer(id *Identity) *Customer {
	return &Customer{
		Kind:     KindPrivate,
		Since:    time.Now().UTC().Add(-time.Second),
		Discount: decimal.Zero,
		Revenue:  decimal.Zero,
		Private: PrivateDetails{
			MaritalStatus: Married,
			Gender:        Female,
		},
		TermsAccepted: true,
		Identity:      id,
	}
}

// NewCorporateCustomer returns a corporate customer with registration defaults.
func NewCorporateCustomer(id *Identity) *Customer {
	return &Customer{
		Kind:          KindCorporate,
		Since:         time.Now().UTC().Add(-time.Second),
		Discount:      decimal.Zero,
		Revenue:       decimal.Zero,
		TermsAccepted: true,
		Identity:      id,
	}
}

func (c *Customer) IsPrivate() bool { return c.Kind == KindPrivate }

// Email is the e-mail of the attached identity, or "".
func (c *Customer) Email() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.Email
}

// Clone returns a deep copy. The copy shares no slices or pointers with c.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	out.Private.Hobbies = append([]Hobby(nil), c.Private.Hobbies...)
	if c.FileID != nil {
		id := *c.FileID
		out.FileID = &id
	}
	out.File = c.File.Clone()
	if c.Orders != nil {
		out.Orders = make([]Order, len(c.Orders))
		for i := range c.Orders {
			out.Orders[i] = c.Orders[i].Clone()
		}
	}
	out.Complaints = append([]Complaint(nil), c.Complaints...)
	out.Identity = c.Identity.Clone()
	return &out
}

// CopyEditableFrom copies the fields an update may change from src onto c.
// Keys, version, timestamps and associations are left alone.
func (c *Customer) CopyEditableFrom(src *Customer) {
	c.Category = src.Category
	c.Discount = src.Discount
	c.Revenue = src.Revenue
	c.Since = src.Since
	c.Newsletter = src.Newsletter
	c.Remarks = src.Remarks
	c.Private = PrivateDetails{
		MaritalStatus: src.Private.MaritalStatus,
		Gender:        src.Private.Gender,
		Hobbies:       append([]Hobby(nil), src.Private.Hobbies...),
	}
}
