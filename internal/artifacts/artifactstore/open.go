// Package artifactstore picks the artifact store driver named in the config.
package artifactstore

import (
	"context"
	"fmt"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/artifacts/fsstore"
	"github.com/BearBump/HaulTicket/internal/artifacts/s3store"
)

func Open(ctx context.Context, cfg config.ArtifactsConfig) (artifacts.Store, error) {
	switch artifacts.Driver(cfg.Driver) {
	case "", artifacts.DriverFilesystem:
		return fsstore.New(cfg.Dir)
	case artifacts.DriverS3:
		return s3store.New(ctx, s3store.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown artifacts driver %q", cfg.Driver)
	}
}
