package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/config"
	"github.com/sagarc03/blobkeep/database"
	"github.com/sagarc03/blobkeep/filesystem"
)

// app holds the opened storage root, metadata index and the service on top.
type app struct {
	db      database.Database
	root    *os.Root
	service *blobkeep.BlobService
}

// openApp creates the storage root if missing, opens the metadata index
// and builds the blob service.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage root: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Debug("connected to database", "type", cfg.Database.Type, "table", cfg.Database.Tables.MetaData)

	service, err := blobkeep.NewBlobService(db.GetRepo(), filesystem.NewFileStorage(root), cfg.Service.BlobService())
	if err != nil {
		_ = db.Close()
		_ = root.Close()
		return nil, fmt.Errorf("create service: %w", err)
	}

	return &app{db: db, root: root, service: service}, nil
}

func (a *app) Close() error {
	return errors.Join(a.db.Close(), a.root.Close())
}
