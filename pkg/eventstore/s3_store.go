package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ObjectStore is the ObjectBackend backed by AWS S3 (or an S3-compatible
// endpoint such as MinIO). Event bodies are stored under a hash-partitioned
// key; the hash->CID sidecar mapping lives under a separate key prefix so it
// survives independently of the content-addressed tier.
type S3ObjectStore struct {
	client       *s3.Client
	bucket       string
	bodyPrefix   string
	sidecarPrefix string
}

// S3ObjectStoreConfig configures S3ObjectStore.
type S3ObjectStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for MinIO/LocalStack
	BodyPrefix    string // defaults to "events/"
	SidecarPrefix string // defaults to "mappings/"
}

// NewS3ObjectStore builds an S3ObjectStore.
func NewS3ObjectStore(ctx context.Context, cfg S3ObjectStoreConfig) (*S3ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("eventstore: load aws config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}
	client := s3.NewFromConfig(awsCfg, clientOpts)

	bodyPrefix := cfg.BodyPrefix
	if bodyPrefix == "" {
		bodyPrefix = "events/"
	}
	sidecarPrefix := cfg.SidecarPrefix
	if sidecarPrefix == "" {
		sidecarPrefix = "mappings/"
	}

	return &S3ObjectStore{
		client:        client,
		bucket:        cfg.Bucket,
		bodyPrefix:    bodyPrefix,
		sidecarPrefix: sidecarPrefix,
	}, nil
}

func (s *S3ObjectStore) bodyKey(hash string) string {
	// Partition by the first two hex characters to avoid unbounded flat
	// prefixes under high event volume.
	if len(hash) >= 2 {
		return s.bodyPrefix + hash[:2] + "/" + hash + ".json"
	}
	return s.bodyPrefix + hash + ".json"
}

func (s *S3ObjectStore) sidecarKey(hash string) string {
	if len(hash) >= 2 {
		return s.sidecarPrefix + hash[:2] + "/" + hash + ".json"
	}
	return s.sidecarPrefix + hash + ".json"
}

func (s *S3ObjectStore) PutBody(ctx context.Context, hash string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.bodyKey(hash)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("eventstore: s3 put body %s: %w", hash, err)
	}
	return nil
}

func (s *S3ObjectStore) GetBody(ctx context.Context, hash string) ([]byte, bool, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.bodyKey(hash)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("eventstore: s3 get body %s: %w", hash, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, false, fmt.Errorf("eventstore: read s3 body %s: %w", hash, err)
	}
	return data, true, nil
}

func (s *S3ObjectStore) PutSidecar(ctx context.Context, hash string, rec SidecarRecord) error {
	rec.Hash = hash
	rec.StoredAt = rec.StoredAt.UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("eventstore: marshal sidecar %s: %w", hash, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.sidecarKey(hash)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("eventstore: s3 put sidecar %s: %w", hash, err)
	}
	return nil
}

func (s *S3ObjectStore) GetSidecar(ctx context.Context, hash string) (*SidecarRecord, bool, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.sidecarKey(hash)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("eventstore: s3 get sidecar %s: %w", hash, err)
	}
	defer func() { _ = result.Body.Close() }()

	var rec SidecarRecord
	if err := json.NewDecoder(result.Body).Decode(&rec); err != nil {
		return nil, false, fmt.Errorf("eventstore: decode sidecar %s: %w", hash, err)
	}
	return &rec, true, nil
}

func (s *S3ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("eventstore: s3 head bucket: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
