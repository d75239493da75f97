package storage

import (
	"context"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"github.com/tidegate/cryptoharvest/internal/config"
	"google.golang.org/api/option"
)

// GCS is for committing daily objects to a google cloud storage bucket.
type GCS struct {
	bkt *gstorage.BucketHandle
	cfg *config.GCS
}

// InitGCS initializes the cloud storage client with configured values and
// verifies the bucket is reachable. An unreachable or misnamed bucket is a
// startup failure, not something to discover at the first flush.
func InitGCS(appCtx context.Context, cfg *config.GCS) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gstorage.NewClient(appCtx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloud storage client")
	}
	bkt := client.Bucket(cfg.Bucket)

	var ctx context.Context
	if cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = appCtx
	}
	if _, err = bkt.Attrs(ctx); err != nil {
		return nil, errors.Wrapf(err, "bucket %v lookup", cfg.Bucket)
	}
	return &GCS{
		bkt: bkt,
		cfg: cfg,
	}, nil
}

// Name returns the store name used in logs.
func (g *GCS) Name() string {
	return "gcs"
}

// Commit writes one serialized day object under the given key.
// Writes for an existing key replace the object.
func (g *GCS) Commit(appCtx context.Context, key string, data []byte) error {
	var ctx context.Context
	var cancel context.CancelFunc
	if g.cfg.ReqTimeoutSec > 0 {
		ctx, cancel = context.WithTimeout(appCtx, time.Duration(g.cfg.ReqTimeoutSec)*time.Second)
		defer cancel()
	} else {
		ctx = appCtx
	}
	w := g.bkt.Object(key).NewWriter(ctx)
	w.ContentType = "application/gzip"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "object %v write", key)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "object %v commit", key)
	}
	return nil
}
