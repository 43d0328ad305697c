package services

import (
	"errors"
	"fmt"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
)

var (
	// ErrLoginNameExists is returned by Register for a login name already
	// held in the identity store.
	ErrLoginNameExists = identity.ErrLoginNameExists
	// ErrEmailExists is returned when the e-mail belongs to another login name.
	ErrEmailExists = errors.New("services: e-mail already in use")
	// ErrConcurrentlyDeleted is returned when a customer the caller had
	// loaded vanished before the write.
	ErrConcurrentlyDeleted = errors.New("services: customer was deleted concurrently")
	// ErrLostUpdate is returned when the presented version is stale. The
	// caller must re-read and retry.
	ErrLostUpdate = errors.New("services: customer was modified concurrently")
	// ErrHasOrders blocks deleting a customer that owns orders.
	ErrHasOrders = errors.New("services: customer has orders")
	// ErrHasCartPositions blocks deleting a customer with a non-empty cart.
	ErrHasCartPositions = errors.New("services: customer has cart positions")
	// ErrNotFound is returned by reads that match no customer.
	ErrNotFound = errors.New("services: customer not found")
	// ErrInvalidCustomer wraps validation failures.
	ErrInvalidCustomer = errors.New("services: invalid customer")

	ErrUnsupportedMimeType = errors.New("services: unsupported mime type")
	ErrFileTooLarge        = errors.New("services: file too large")
)

// EmailExistsError names the e-mail and the login name already using it.
type EmailExistsError struct {
	Email string
	Owner string
}

func (e *EmailExistsError) Error() string {
	return fmt.Sprintf("services: e-mail %s already in use by %s", e.Email, e.Owner)
}

func (e *EmailExistsError) Is(target error) bool { return target == ErrEmailExists }

// HasOrdersError carries the number of orders blocking a delete.
type HasOrdersError struct {
	CustomerID uint
	Count      int
}

func (e *HasOrdersError) Error() string {
	return fmt.Sprintf("services: customer %d has %d order(s)", e.CustomerID, e.Count)
}

func (e *HasOrdersError) Is(target error) bool { return target == ErrHasOrders }

// HasCartPositionsError carries the cart positions blocking a delete.
type HasCartPositionsError struct {
	CustomerID uint
	Positions  []models.CartPosition
}

func (e *HasCartPositionsError) Count() int { return len(e.Positions) }

func (e *HasCartPositionsError) Error() string {
	return fmt.Sprintf("services: customer %d has %d cart position(s)", e.CustomerID, len(e.Positions))
}

func (e *HasCartPositionsError) Is(target error) bool { return target == ErrHasCartPositions }

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidCustomer, err)
}

// result labels an outcome for metrics.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrLostUpdate):
		return "lost_update"
	case errors.Is(err, ErrConcurrentlyDeleted):
		return "concurrently_deleted"
	case errors.Is(err, ErrEmailExists):
		return "email_exists"
	case errors.Is(err, ErrLoginNameExists):
		return "login_name_exists"
	case errors.Is(err, ErrHasOrders):
		return "has_orders"
	case errors.Is(err, ErrHasCartPositions):
		return "has_cart_positions"
	case errors.Is(err, ErrInvalidCustomer):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
