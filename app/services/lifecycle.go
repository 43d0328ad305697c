package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/logger"
)

// Synchronizer keeps the identity payload of customers in step with the
// identity store. Its hooks are called explicitly by the service at fixed
// points; reads done by the update protocol deliberately skip OnLoad.
type Synchronizer struct {
	identities *identity.Adapter
}

func NewSynchronizer(identities *identity.Adapter) *Synchronizer {
	return &Synchronizer{identities: identities}
}

// OnCreate mirrors the login name onto c and creates its identity record.
// It runs inside the customer transaction; an error aborts the insert.
func (s *Synchronizer) OnCreate(ctx context.Context, c *models.Customer) error {
	if c.Identity == nil {
		return invalid(errors.New("identity is required"))
	}
	c.LoginName = c.Identity.LoginName
	if err := s.identities.Create(ctx, c.Identity); err != nil {
		return fmt.Errorf("services: create identity %s: %w", c.LoginName, err)
	}
	return nil
}

// OnLoad replaces the identity payload of every customer with a fresh read.
// A customer without an identity record keeps a nil payload.
func (s *Synchronizer) OnLoad(ctx context.Context, cs ...*models.Customer) error {
	for _, c := range cs {
		id, err := s.identities.FindByLoginName(ctx, c.LoginName)
		if errors.Is(err, identity.ErrNotFound) {
			logger.WithCtx(ctx).Warn("lifecycle: identity missing", "customer_id", c.ID, "login_name", c.LoginName)
			c.Identity = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("services: load identity %s: %w", c.LoginName, err)
		}
		c.Identity = id
	}
	return nil
}

// OnDelete removes the identity record before the customer row goes.
func (s *Synchronizer) OnDelete(ctx context.Context, c *models.Customer) error {
	if err := s.identities.Remove(ctx, c.LoginName); err != nil {
		return fmt.Errorf("services: remove identity %s: %w", c.LoginName, err)
	}
	return nil
}
