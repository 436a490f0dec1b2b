package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for the S3 archive mirror.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	// Required by most S3-compatible providers (R2, MinIO, etc.).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// ObjectPutter abstracts the S3 PutObject call. Real mirrors use the
// AWS SDK client; stubs are used for testing.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror uploads a finished session archive to S3.
type Mirror struct {
	client ObjectPutter
	config S3Config
}

// NewMirror creates an archive mirror with the given S3 client.
func NewMirror(client ObjectPutter, config S3Config) (*Mirror, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Mirror{client: client, config: config}, nil
}

// NewS3Mirror creates an archive mirror backed by the AWS SDK.
// Uses the AWS default credential chain (env vars, shared config, IAM role).
func NewS3Mirror(ctx context.Context, config S3Config) (*Mirror, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		endpoint := config.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if config.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Mirror{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		config: config,
	}, nil
}

// Upload mirrors every file under the session directory to
// <prefix>/<session dir name>/<relative path>. Files are uploaded in
// deterministic path order; the first failure aborts the mirror.
func (m *Mirror) Upload(ctx context.Context, sessionDir string) error {
	var files []string
	err := filepath.WalkDir(sessionDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk session directory: %w", err)
	}
	sort.Strings(files)

	base := filepath.Base(sessionDir)
	for _, path := range files {
		rel, err := filepath.Rel(sessionDir, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		key := m.objectKey(base, rel)
		if err := m.putFile(ctx, key, path); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) objectKey(base, rel string) string {
	key := base + "/" + filepath.ToSlash(rel)
	if m.config.Prefix != "" {
		key = strings.TrimSuffix(m.config.Prefix, "/") + "/" + key
	}
	return key
}

func (m *Mirror) putFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	bucket := m.config.Bucket
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// StubObjectPutter records PutObject calls for testing.
type StubObjectPutter struct {
	mu      sync.Mutex
	Keys    []string
	FailKey string
}

// PutObject implements ObjectPutter by recording the key.
func (p *StubObjectPutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if params.Key != nil && *params.Key == p.FailKey && p.FailKey != "" {
		return nil, errors.New("stub put failure")
	}
	if params.Key != nil {
		p.Keys = append(p.Keys, *params.Key)
	}
	return &s3.PutObjectOutput{}, nil
}

// Verify StubObjectPutter implements ObjectPutter.
var _ ObjectPutter = (*StubObjectPutter)(nil)
