package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/app/repositories"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

// DriftReport lists login names present in only one of the two stores.
type DriftReport struct {
	CustomersWithoutIdentity  []string
	IdentitiesWithoutCustomer []string
}

func (r *DriftReport) Empty() bool {
	return len(r.CustomersWithoutIdentity) == 0 && len(r.IdentitiesWithoutCustomer) == 0
}

// Reconciler detects records left behind when a process dies between the
// customer commit and the matching identity write.
type Reconciler struct {
	customers  *repositories.CustomerRepository
	identities *identity.Adapter
}

func NewReconciler(db *gorm.DB, identities *identity.Adapter) *Reconciler {
	return &Reconciler{customers: repositories.NewCustomerRepository(db), identities: identities}
}

// Check compares both stores. Identities holding the admin or employee
// role are staff accounts and never count as drift.
func (r *Reconciler) Check(ctx context.Context) (*DriftReport, error) {
	customers, err := r.customers.LoginNames(ctx)
	if err != nil {
		return nil, err
	}
	identities, err := r.identities.ListLoginNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: list identities: %w", err)
	}

	known := make(map[string]bool, len(identities))
	for _, n := range identities {
		known[n] = true
	}
	report := &DriftReport{}
	for _, n := range customers {
		if !known[n] {
			report.CustomersWithoutIdentity = append(report.CustomersWithoutIdentity, n)
		}
		delete(known, n)
	}
	for _, n := range identities {
		if !known[n] {
			continue
		}
		staff, err := r.isStaff(ctx, n)
		if err != nil {
			return nil, err
		}
		if !staff {
			report.IdentitiesWithoutCustomer = append(report.IdentitiesWithoutCustomer, n)
		}
	}

	metrics.StoreDrift.WithLabelValues("customer_without_identity").Set(float64(len(report.CustomersWithoutIdentity)))
	metrics.StoreDrift.WithLabelValues("identity_without_customer").Set(float64(len(report.IdentitiesWithoutCustomer)))
	if !report.Empty() {
		logger.WithCtx(ctx).Warn("reconcile: stores drifted",
			"customers_without_identity", report.CustomersWithoutIdentity,
			"identities_without_customer", report.IdentitiesWithoutCustomer)
	}
	return report, nil
}

func (r *Reconciler) isStaff(ctx context.Context, loginName string) (bool, error) {
	roles, err := r.identities.Roles(ctx, loginName)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role == models.RoleAdmin || role == models.RoleEmployee {
			return true, nil
		}
	}
	return false, nil
}

// Prune removes the orphaned identities of report and returns how many went.
// Customers without identity cannot be repaired automatically and are left
// for an operator.
func (r *Reconciler) Prune(ctx context.Context, report *DriftReport) (int, error) {
	n := 0
	for _, name := range report.IdentitiesWithoutCustomer {
		if err := r.identities.Remove(ctx, name); err != nil {
			return n, fmt.Errorf("services: prune identity %s: %w", name, err)
		}
		n++
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("reconcile: pruned identities", "count", n)
	}
	return n, nil
}
