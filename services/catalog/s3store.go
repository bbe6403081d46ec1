package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"assetdex/pkg/fault"
	"assetdex/pkg/retry"
	gos3 "assetdex/pkg/s3"
)

const blobContentType = "application/zstd"

// S3Store implements DurableStore over an S3-compatible bucket. Blobs
// are zstd-compressed JSON, which keeps a large multi-tenant catalog
// inside the storage budget. Every call runs under the portal retry
// policy; exhausted or unretryable failures surface classified.
type S3Store struct {
	client *gos3.Client
	bucket string
	policy retry.Policy

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewS3Store builds an S3Store for the given bucket.
func NewS3Store(client *gos3.Client, bucket string, policy retry.Policy) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}

	return &S3Store{
		client:  client,
		bucket:  bucket,
		policy:  policy,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Get reads and decompresses the blob at key. Missing keys map to
// ErrNotFound without retries.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var compressed []byte
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		data, err := s.client.GetObject(ctx, s.bucket, key)
		if err != nil {
			if errors.Is(err, gos3.ErrNotFound) {
				return err
			}
			return fault.Classify("s3 get "+key, err)
		}
		compressed = data
		return nil
	})
	if err != nil {
		if errors.Is(err, gos3.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	plain, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return plain, nil
}

// Put compresses and writes data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	compressed := s.encoder.EncodeAll(data, nil)
	return s.policy.Do(ctx, func(ctx context.Context) error {
		if err := s.client.PutObject(ctx, s.bucket, key, compressed, blobContentType); err != nil {
			return fault.Classify("s3 put "+key, err)
		}
		return nil
	})
}
