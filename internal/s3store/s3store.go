// Package s3store adapts an S3-compatible object store (via
// minio-go) into the Store contract, so a symbol cache can be backed by
// object storage instead of the local filesystem — a "remote cache
// tier" deployment shape. Every key maps to one object of the same
// name in the bucket.
package s3store

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliharirian/symcache/internal/diagnostics"
	"github.com/aliharirian/symcache/internal/store"
)

// S3Store is a Store backed by a single bucket on an S3-compatible
// endpoint. Every key maps to the object of the same name.
type S3Store struct {
	client *minio.Client
	bucket string
	name   string
}

// New builds an S3Store, creating bucket if it does not already exist.
func New(ctx context.Context, endpoint, access, secret, bucket string) (*S3Store, error) {
	secure := false
	switch {
	case len(endpoint) >= 8 && endpoint[:8] == "https://":
		secure = true
		endpoint = endpoint[8:]
	case len(endpoint) >= 7 && endpoint[:7] == "http://":
		endpoint = endpoint[7:]
	}
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "s3store: connect")
	}
	s := &S3Store{client: cl, bucket: bucket, name: "s3://" + bucket}

	exists, err := cl.BucketExists(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(err, "s3store: check bucket")
	}
	if !exists {
		if err := cl.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "s3store: create bucket")
		}
	}
	return s, nil
}

func (s *S3Store) Name() string { return s.name }

func (s *S3Store) GetFileIdentity(key string) (string, bool) {
	return s.name + "/" + key, true
}

// Find stats and, if present, opens key as an object. A missing object
// is NotFound; any other error is Unreachable.
func (s *S3Store) Find(ctx context.Context, key string, policy store.CacheValidityPolicy) *store.SearchResult {
	queryTime := time.Now()
	identity, _ := s.GetFileIdentity(key)

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return store.MakeResult(nil, diagnostics.NotFound, "", key, queryTime, nil, s.name)
		}
		return store.MakeResult(nil, diagnostics.Unreachable, "", key, queryTime, nil, s.name)
	}

	return store.MakeResult(func(ctx context.Context) (io.ReadCloser, error) {
		return s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	}, diagnostics.Success, identity, key, queryTime, nil, s.name)
}

// Put uploads data under key, for use as a cache-root backing store
// (ingestion still goes through internal/filecache's temp-write
// discipline at a higher layer; Put itself is a single atomic PUT as
// MinIO guarantees for non-multipart uploads).
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{}
	if contentType != "" {
		opts.ContentType = contentType
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return errors.Wrap(err, "s3store: put object")
	}
	return nil
}

// Ping verifies the bucket is reachable, for use by a health check.
func (s *S3Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "s3store: ping")
	}
	if !exists {
		return errors.Newf("s3store: bucket %s not found", s.bucket)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
