// Package storage keeps one inspection image per session.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/set-night/apexinspect/internal/config"
)

// ErrNotFound is returned by Load when nothing is stored at the path.
var ErrNotFound = errors.New("image not found")

// ImageStore persists session images at a location derived from the session id.
// Saving twice for the same session overwrites the previous image.
type ImageStore interface {
	Save(ctx context.Context, sessionID string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Remove(ctx context.Context, path string) error
}

// ImageName is the well-known file name of a session image.
func ImageName(sessionID string) string {
	return sessionID + ".jpg"
}

// Open builds the image store selected by IMAGE_STORE.
func Open(ctx context.Context, cfg *config.Config) (ImageStore, error) {
	switch cfg.ImageStore {
	case config.ImageStoreMinIO:
		return NewMinIOStore(ctx, MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case config.ImageStoreLocal, "":
		return NewLocalStore(cfg.ImageDir)
	default:
		return nil, fmt.Errorf("unknown image store %q", cfg.ImageStore)
	}
}
