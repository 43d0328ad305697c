// Package server boots the shop process: it wires the stores, the identity
// adapter and the services from configuration, and runs the operational
// HTTP endpoint plus the periodic reconciliation sweep.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/identity"
	"github.com/shashiranjanraj/shop/app/services"
	"github.com/shashiranjanraj/shop/config"
	"github.com/shashiranjanraj/shop/pkg/cache"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/event"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
	"github.com/shashiranjanraj/shop/pkg/reqid"
	"github.com/shashiranjanraj/shop/pkg/storage"
	"github.com/shashiranjanraj/shop/pkg/workerpool"
)

// App holds the wired components of one process.
type App struct {
	DB         *gorm.DB
	Cache      cache.Store
	Identities *identity.Adapter
	Disk       storage.Disk
	Pool       *workerpool.Pool
	Customers  *services.CustomerService
	Complaints *services.ComplaintService
	Reconciler *services.Reconciler

	closers []func(ctx context.Context) error
}

// Boot loads configuration and connects every backing store.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	if uri := config.LogMongoURI(); uri != "" {
		if err := logger.EnableMongo(uri, config.MongoDatabase()); err != nil {
			logger.Warn("server: mongo log sink disabled", "error", err)
		}
	}

	app := &App{}
	if err := database.Connect(); err != nil {
		return nil, err
	}
	app.DB = database.DB
	app.onClose(func(context.Context) error { return database.Close(app.DB) })

	c, err := cache.Connect(ctx)
	if err != nil {
		logger.Warn("server: redis unavailable, using memory cache", "error", err)
	}
	app.Cache = c
	if rc, ok := c.(*cache.RedisStore); ok {
		app.onClose(func(context.Context) error { return rc.Close() })
	}

	store, err := connectIdentityStore(ctx, app)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Identities = identity.NewAdapter(store, app.Cache, config.RoleCacheTTL())

	app.Disk, err = storage.Connect(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Pool = workerpool.New(config.AttachmentWorkers(),
		workerpool.WithQueueSize(config.AttachmentWorkers()*16),
		workerpool.WithPanicHandler(func(r interface{}) {
			logger.Error("attachment: worker panicked", "panic", r)
		}),
	)
	writer := services.NewAttachmentWriter(app.Disk, app.Pool, config.AttachmentTolerance())

	app.Customers = services.NewCustomerService(app.DB, app.Identities,
		services.WithAttachmentWriter(writer),
		services.WithSizeLimit(config.AttachmentSizeLimit()),
	)
	app.Complaints = services.NewComplaintService(app.DB)
	app.Reconciler = services.NewReconciler(app.DB, app.Identities)

	logger.Info("server: booted",
		"db", config.DatabaseDriver(),
		"cache", app.Cache.Driver(),
		"identity", app.Identities.Backend(),
		"disk", app.Disk.Name(),
	)
	return app, nil
}

func connectIdentityStore(ctx context.Context, app *App) (identity.Store, error) {
	if config.IdentityDriver() != "mongo" {
		if config.AppEnv() == "production" {
			logger.Warn("server: identity store is in memory; identities are lost on restart")
		}
		return identity.NewMemoryStore(), nil
	}
	ms, err := identity.ConnectMongo(ctx, config.MongoURI(), config.MongoDatabase())
	if err != nil {
		return nil, err
	}
	app.onClose(ms.Close)
	if err := ms.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("server: identity indexes: %w", err)
	}
	return ms, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close drains the attachment pool and pending listeners, then releases
// connections in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	event.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("server: close", "error", err)
		}
	}
	logger.Close()
}

// RegisterListeners subscribes the process to domain events.
func (a *App) RegisterListeners() {
	event.Listen(services.EventCustomerRegistered, func(p interface{}) {
		ev, ok := p.(services.CustomerRegistered)
		if !ok {
			return
		}
		// Warm the role cache for the first sign-in.
		if _, err := a.Identities.Roles(context.Background(), ev.LoginName); err != nil {
			logger.Warn("server: warm role cache", "login_name", ev.LoginName, "error", err)
		}
		logger.Info("customer.registered", "customer_id", ev.CustomerID, "login_name", ev.LoginName)
	})
}

// Handler serves /metrics and /healthz.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", a.health)
	return reqid.Middleware(metrics.Middleware(recovery(mux)))
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status":   "ok",
		"db":       "ok",
		"identity": a.Identities.Backend(),
		"cache":    a.Cache.Driver(),
		"disk":     a.Disk.Name(),
	}
	if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = http.StatusServiceUnavailable
		body["status"], body["db"] = "degraded", "unreachable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Reconcile runs one drift check and optionally prunes orphaned identities.
func (a *App) Reconcile(ctx context.Context, prune bool) (*services.DriftReport, error) {
	ctx = reqid.Ensure(ctx)
	report, err := a.Reconciler.Check(ctx)
	if err != nil || !prune {
		return report, err
	}
	if _, err := a.Reconciler.Prune(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

func (a *App) reconcileLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.Reconcile(ctx, false); err != nil {
				logger.Error("server: reconcile", "error", err)
			}
		}
	}
}

// Start boots the process and serves until ctx is cancelled.
func Start(ctx context.Context) error {
	app, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	app.RegisterListeners()

	srv := &http.Server{
		Addr:              ":" + config.MetricsPort(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go app.reconcileLoop(ctx, config.ReconcileInterval())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("server: shutting down")
	return srv.Shutdown(shutdownCtx)
}
