package services

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/logger"
	"github.com/shashiranjanraj/shop/pkg/metrics"
	"github.com/shashiranjanraj/shop/pkg/reqid"
	"github.com/shashiranjanraj/shop/pkg/storage"
	"github.com/shashiranjanraj/shop/pkg/workerpool"
)

// AttachmentWriter copies committed attachment records to durable storage
// on a worker pool, off the request path.
type AttachmentWriter struct {
	disk      storage.Disk
	pool      *workerpool.Pool
	tolerance time.Duration
}

func NewAttachmentWriter(disk storage.Disk, pool *workerpool.Pool, tolerance time.Duration) *AttachmentWriter {
	return &AttachmentWriter{disk: disk, pool: pool, tolerance: tolerance}
}

// Submit schedules Store for f. The write is dropped when the pool is full
// or closed; the record itself is already committed.
func (w *AttachmentWriter) Submit(ctx context.Context, f *models.File) {
	ctx = reqid.Detach(ctx)
	err := w.pool.Submit(func() {
		_, _ = w.Store(ctx, f)
	})
	if err != nil {
		metrics.AttachmentWrites.WithLabelValues("dropped").Inc()
		logger.WithCtx(ctx).Warn("attachment: write dropped", "filename", f.Filename, "error", err)
	}
}

// Store writes f unless the stored copy was modified within tolerance of
// the record's last change or later. It reports whether it wrote.
func (w *AttachmentWriter) Store(ctx context.Context, f *models.File) (bool, error) {
	log := logger.WithCtx(ctx).With("filename", f.Filename, "disk", w.disk.Name())

	info, err := w.disk.Stat(ctx, f.Filename)
	switch {
	case err == nil:
		if info.ModTime.Add(w.tolerance).After(f.UpdatedAt) {
			metrics.AttachmentWrites.WithLabelValues("skipped").Inc()
			log.Debug("attachment: up to date", "mod_time", info.ModTime, "updated_at", f.UpdatedAt)
			return false, nil
		}
	case errors.Is(err, storage.ErrNotExist):
	default:
		log.Warn("attachment: stat failed, writing anyway", "error", err)
	}

	if err := w.disk.Put(ctx, f.Filename, f.Data); err != nil {
		metrics.AttachmentWrites.WithLabelValues("failed").Inc()
		log.Error("attachment: write failed", "error", err)
		return false, err
	}
	metrics.AttachmentWrites.WithLabelValues("written").Inc()
	log.Debug("attachment: written", "bytes", len(f.Data))
	return true, nil
}

// Discard removes a stored attachment in the background.
func (w *AttachmentWriter) Discard(ctx context.Context, filename string) {
	ctx = reqid.Detach(ctx)
	err := w.pool.Submit(func() {
		if err := w.disk.Delete(ctx, filename); err != nil && !errors.Is(err, storage.ErrNotExist) {
			logger.WithCtx(ctx).Warn("attachment: delete failed", "filename", filename, "error", err)
		}
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("attachment: delete dropped", "filename", filename, "error", err)
	}
}
