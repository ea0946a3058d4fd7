// Package logstore implements storage.LogStore for long-form execution
// transcripts (prompt + agent response) that don't belong inline in the
// ExecutionRecord row.
package logstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store stores execution transcripts in S3-compatible storage.
type S3Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	localCache string
}

// S3Config holds S3 configuration.
type S3Config struct {
	Bucket          string
	Prefix          string // e.g. "executions/"
	Region          string
	Endpoint        string // for MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
	LocalCacheDir   string
}

// NewS3Store creates a new S3-backed log store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	if cfg.LocalCacheDir != "" {
		if err := os.MkdirAll(cfg.LocalCacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return &S3Store{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		localCache: cfg.LocalCacheDir,
	}, nil
}

// Store saves an execution transcript to S3.
func (s *S3Store) Store(ctx context.Context, executionID uuid.UUID, content []byte) (string, error) {
	key := s.buildKey(executionID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload execution transcript to S3: %w", err)
	}

	if s.localCache != "" {
		cachePath := filepath.Join(s.localCache, executionID.String()+".log")
		_ = os.WriteFile(cachePath, content, 0644)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Retrieve fetches a transcript from S3.
func (s *S3Store) Retrieve(ctx context.Context, uri string) ([]byte, error) {
	key := s.extractKey(uri)

	if s.localCache != "" {
		cachePath := filepath.Join(s.localCache, filepath.Base(key))
		if data, err := os.ReadFile(cachePath); err == nil {
			return data, nil
		}
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution transcript from S3: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	if s.localCache != "" {
		cachePath := filepath.Join(s.localCache, filepath.Base(key))
		_ = os.WriteFile(cachePath, data, 0644)
	}

	return data, nil
}

func (s *S3Store) buildKey(executionID uuid.UUID) string {
	timestamp := time.Now().Format("2006/01/02")
	return fmt.Sprintf("%s%s/%s.log", s.prefix, timestamp, executionID.String())
}

func (s *S3Store) extractKey(uri string) string {
	if len(uri) > 5 && uri[:5] == "s3://" {
		parts := uri[5:]
		for i, c := range parts {
			if c == '/' {
				return parts[i+1:]
			}
		}
	}
	return uri
}

// LocalStore stores execution transcripts on the local filesystem, a
// fallback for single-node deployments without an S3-compatible backend.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local filesystem log store.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Store saves a transcript to the local filesystem.
func (l *LocalStore) Store(ctx context.Context, executionID uuid.UUID, content []byte) (string, error) {
	path := filepath.Join(l.basePath, executionID.String()+".log")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

// Retrieve fetches a transcript from the local filesystem.
func (l *LocalStore) Retrieve(ctx context.Context, uri string) ([]byte, error) {
	return os.ReadFile(uri)
}
