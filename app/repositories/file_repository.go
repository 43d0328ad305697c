package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/shop/app/models"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/metrics"
)

// FileRepository stores attachment records keyed by their unique filename.
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) FindByID(ctx context.Context, id uint) (*models.File, error) {
	var f models.File
	err := database.Conn(ctx, r.db).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find file: %w", err)
	}
	return &f, nil
}

func (r *FileRepository) FindByFilename(ctx context.Context, name string) (*models.File, error) {
	var f models.File
	err := database.Conn(ctx, r.db).Where("filename = ?", name).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: find file %s: %w", name, err)
	}
	return &f, nil
}

// Save inserts f, or replaces the content of the record already stored
// under f.Filename and bumps its version. Saving the same bytes and MIME
// type again leaves the record as it is. On return f carries the stored
// id, version and timestamps.
func (r *FileRepository) Save(ctx context.Context, f *models.File) error {
	defer metrics.ObserveDBQuery("upsert", time.Now())

	existing, err := r.FindByFilename(ctx, f.Filename)
	switch {
	case errors.Is(err, ErrNotFound):
		f.ID = 0
		f.Version = 0
		if err := database.Conn(ctx, r.db).Create(f).Error; err != nil {
			return fmt.Errorf("repositories: create file: %w", err)
		}
		return nil
	case err != nil:
		return err
	}

	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	if existing.MimeType == f.MimeType && bytes.Equal(existing.Data, f.Data) {
		f.Kind = existing.Kind
		f.Version = existing.Version
		f.UpdatedAt = existing.UpdatedAt
		return nil
	}
	f.Version = existing.Version + 1
	f.UpdatedAt = time.Now().UTC()
	err = database.Conn(ctx, r.db).Model(f).
		Select("mime_type", "kind", "data", "version", "updated_at").
		Updates(f).Error
	if err != nil {
		return fmt.Errorf("repositories: update file: %w", err)
	}
	return nil
}
