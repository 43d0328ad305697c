package storage

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/shop/config"
)

// Connect builds the disk selected by STORAGE_DISK ("local" or "s3").
func Connect(ctx context.Context) (Disk, error) {
	switch config.StorageDefault() {
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			URL:      config.StorageS3URL(),
		})
	case "local":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL()), nil
	default:
		return nil, fmt.Errorf("storage: unsupported STORAGE_DISK %q (supported: local, s3)", config.StorageDefault())
	}
}
