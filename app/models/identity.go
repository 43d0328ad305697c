package models

import (
	"slices"
	"time"
)

// Role is a grant held in the identity store.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleEmployee, RoleCustomer}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return slices.Contains(Roles, r) }

type Address struct {
	PostalCode  string `json:"postalCode"  validate:"required,len=5,numeric"`
	City        string `json:"city"        validate:"required,min=2,max=32"`
	Street      string `json:"street"      validate:"omitempty,min=2,max=32"`
	HouseNumber string `json:"houseNumber" validate:"max=4"`
}

// Identity is the record the identity store keeps per login name. Password
// is write-only plain text; the store keeps PasswordHash.
type Identity struct {
	LoginName    string     `json:"loginName"           validate:"required,max=32"`
	Password     string     `json:"password,omitempty"  validate:"max=72"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty" validate:"max=32"`
	LastName     string     `json:"lastName"            validate:"required,max=32,lastname"`
	Email        string     `json:"email"               validate:"required,max=64,mailaddress"`
	Address      Address    `json:"address"`
	Enabled      bool       `json:"enabled"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Roles        []Role     `json:"roles,omitempty"`
}

// Clone returns a deep copy of id.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	out := *id
	if id.ExpiresAt != nil {
		t := *id.ExpiresAt
		out.ExpiresAt = &t
	}
	out.Roles = append([]Role(nil), id.Roles...)
	return &out
}

// HasRole reports whether role is among the grants carried by id.
func (id *Identity) HasRole(role Role) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// SameProfile reports whether id and other carry the same editable data.
// A pending password change always counts as a difference.
func (id *Identity) SameProfile(other *Identity) bool {
	if id == nil || other == nil {
		return id == other
	}
	if id.Password != "" {
		return false
	}
	sameExpiry := (id.ExpiresAt == nil && other.ExpiresAt == nil) ||
		(id.ExpiresAt != nil && other.ExpiresAt != nil && id.ExpiresAt.Equal(*other.ExpiresAt))
	return id.LoginName == other.LoginName &&
		id.FirstName == other.FirstName &&
		id.LastName == other.LastName &&
		id.Email == other.Email &&
		id.Address == other.Address &&
		id.Enabled == other.Enabled &&
		sameExpiry
}
