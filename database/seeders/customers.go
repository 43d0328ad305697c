package seeders

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/app/services"
)

func init() {
	Register("customers", SeedCustomers)
}

type seedCustomer struct {
	corporate bool
	category  int
	revenue   string
	identity  models.Identity
}

var demoCustomers = []seedCustomer{
	{
		category: 1,
		revenue:  "120.50",
		identity: models.Identity{
			LoginName: "theo", Password: "theo", FirstName: "Theo", LastName: "Theodor", Email: "theo@test.de",
			Address: models.Address{PostalCode: "76133", City: "Karlsruhe", Street: "Moltkestr", HouseNumber: "30"},
		},
	},
	{
		category: 3,
		revenue:  "2400.00",
		identity: models.Identity{
			LoginName: "maria", Password: "maria", FirstName: "Maria", LastName: "Musterfrau", Email: "other@test.de",
			Address: models.Address{PostalCode: "76131", City: "Karlsruhe", Street: "Kaiserstr", HouseNumber: "12"},
		},
	},
	{
		corporate: true,
		category:  5,
		revenue:   "98000.00",
		identity: models.Identity{
			LoginName: "acme", Password: "acme", FirstName: "Anna", LastName: "Acme", Email: "info@acme.de",
			Address: models.Address{PostalCode: "10115", City: "Berlin"},
		},
	},
}

// SeedCustomers registers the demo customers that are not present yet.
func SeedCustomers(ctx context.Context, customers *services.CustomerService) error {
	for _, s := range demoCustomers {
		_, err := customers.FindByLoginName(ctx, s.identity.LoginName, repositories.CustomerOnly)
		if err == nil {
			continue
		}
		if !errors.Is(err, services.ErrNotFound) {
			return err
		}

		c := models.NewPrivateCustomer(nil)
		if s.corporate {
			c = models.NewCorporateCustomer(nil)
		}
		c.Category = s.category
		c.Revenue = decimal.RequireFromString(s.revenue)
		id := s.identity
		if _, err := customers.Register(ctx, c, &id); err != nil {
			return err
		}
	}
	return nil
}
