// Package blob stores audio artifacts and hands back publicly
// resolvable URLs. S3 is the production backend; a local-disk backend
// exists for development and tests.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ncecere/voice_gateway/internal/config"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("object not found")

type PutOptions struct {
	ContentType string
}

// ObjectInfo describes a stored object. URL is publicly resolvable.
type ObjectInfo struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

// Store persists audio payloads. Put must return a deterministic URL
// for the written key; failures surface immediately with no retry.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the store selected by configuration.
func New(ctx context.Context, storageCfg config.StorageConfig, awsCfg config.AWSConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(storageCfg.Driver)) {
	case "s3", "":
		return newS3Store(ctx, storageCfg, awsCfg)
	case "local":
		return newLocalStore(storageCfg)
	default:
		return nil, errors.New("unknown storage driver: " + storageCfg.Driver)
	}
}
