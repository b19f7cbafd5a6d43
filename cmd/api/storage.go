package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gallery/service/internal/config"
	"github.com/gallery/service/internal/storage"
)

// objectStore is the configured gateway, the disk new images go to and, for
// the local driver, the handler serving stored files.
type objectStore struct {
	gateway *storage.Gateway
	disk    storage.Disk

	staticPrefix  string
	staticHandler http.Handler
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (*objectStore, error) {
	switch cfg.Driver {
	case config.DriverLocal:
		local, err := storage.NewLocalStorage(cfg.LocalRoot, cfg.LocalURLPrefix)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return &objectStore{
			gateway:       storage.NewGateway(map[storage.Disk]storage.Storage{storage.DiskLocal: local}),
			disk:          storage.DiskLocal,
			staticPrefix:  local.URLPrefix(),
			staticHandler: local.Handler(),
		}, nil

	case config.DriverMinio:
		s3, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:   cfg.Endpoint,
			Region:     cfg.Region,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			Bucket:     cfg.Bucket,
			UseSSL:     cfg.UseSSL,
			Public:     cfg.Public,
			PublicBase: cfg.PublicBase,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		return &objectStore{
			gateway: storage.NewGateway(map[storage.Disk]storage.Storage{storage.DiskS3: s3}),
			disk:    storage.DiskS3,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
