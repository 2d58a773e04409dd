// Package blob keeps the historical table as a single object in a bucket.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"
	"github.com/thanos-io/objstore/providers/s3"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
	"etf-flow-lab/internal/storage/csvtable"
)

// TableStore implements storage.TableStore over one object key.
type TableStore struct {
	bucket objstore.Bucket
	key    string
}

// NewTableStore creates a store reading and writing key in bucket.
func NewTableStore(bucket objstore.Bucket, key string) *TableStore {
	return &TableStore{bucket: bucket, key: key}
}

// Compile-time interface check.
var _ storage.TableStore = (*TableStore)(nil)

// Load reads and decodes the whole object. Returns ErrNotFound if it doesn't exist.
func (s *TableStore) Load(ctx context.Context) (*domain.Table, error) {
	rc, err := s.bucket.Get(ctx, s.key)
	if err != nil {
		if s.bucket.IsObjNotFoundErr(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", s.key, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", s.key, err)
	}

	t, err := csvtable.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", s.key, err)
	}
	return t, nil
}

// Save encodes t fully in memory before uploading, so a failed encode
// never touches the stored object.
func (s *TableStore) Save(ctx context.Context, t *domain.Table) error {
	body, err := csvtable.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	if err := s.bucket.Upload(ctx, s.key, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("upload object %s: %w", s.key, err)
	}
	return nil
}

// S3Config holds S3 bucket settings.
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Insecure  bool
}

// NewInMemBucket returns a process-local bucket.
func NewInMemBucket() objstore.Bucket {
	return objstore.NewInMemBucket()
}

// NewFilesystemBucket returns a bucket rooted at dir.
func NewFilesystemBucket(dir string) (objstore.Bucket, error) {
	b, err := filesystem.NewBucket(dir)
	if err != nil {
		return nil, fmt.Errorf("open filesystem bucket %s: %w", dir, err)
	}
	return b, nil
}

// NewS3Bucket returns an S3 bucket. Endpoint defaults to AWS for the region.
func NewS3Bucket(cfg S3Config) (objstore.Bucket, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3." + cfg.Region + ".amazonaws.com"
	}
	b, err := s3.NewBucketWithConfig(log.NewNopLogger(), s3.Config{
		Bucket:    cfg.Bucket,
		Endpoint:  endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Insecure:  cfg.Insecure,
	}, "etf-flow-lab")
	if err != nil {
		return nil, fmt.Errorf("open s3 bucket %s: %w", cfg.Bucket, err)
	}
	return b, nil
}
