package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archivist/internal/config"
	"archivist/internal/services"
)

// Object describes one upload.
type Object struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// Store is the subset of bucket operations the mirror stage needs.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, obj Object) error
	PublicURL(key string) string
	HealthCheck(ctx context.Context) error
}

// Client implements Store on top of minio-go.
type Client struct {
	client    *minio.Client
	bucket    string
	publicURL string
	endpoint  string
	secure    bool
}

// New builds a client from the mirror config section.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil || !cfg.MirrorConfigured() {
		return nil, services.Wrap(services.ErrConfiguration, "mirror", "connect", "mirror credentials incomplete", nil)
	}
	endpoint := cfg.MirrorEndpoint()
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Mirror.AccessKeyID, cfg.Mirror.SecretAccessKey, ""),
		Secure: cfg.Mirror.UseSSL,
		Region: cfg.Mirror.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mirror", "connect", "create s3 client", err)
	}
	return &Client{
		client:    client,
		bucket:    cfg.Mirror.Bucket,
		publicURL: strings.TrimRight(strings.TrimSpace(cfg.Mirror.PublicURL), "/"),
		endpoint:  endpoint,
		secure:    cfg.Mirror.UseSSL,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Exists reports whether key is already present in the bucket.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, classify("stat", err)
}

// Put uploads obj in a single request stream.
func (c *Client) Put(ctx context.Context, obj Object) error {
	if strings.TrimSpace(obj.Key) == "" {
		return services.Wrap(services.ErrValidation, "mirror", "put", "object key required", nil)
	}
	if obj.Body == nil {
		return services.Wrap(services.ErrValidation, "mirror", "put", "object body required", nil)
	}
	_, err := c.client.PutObject(ctx, c.bucket, obj.Key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: obj.Metadata,
	})
	if err != nil {
		return classify("put", err)
	}
	return nil
}

// PublicURL returns the browser-facing URL of key. A configured public URL
// (an R2 custom domain) wins over the path-style endpoint URL.
func (c *Client) PublicURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.endpoint, c.bucket, key)
}

// HealthCheck confirms the bucket is reachable with the configured keys.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return classify("bucket exists", err)
	}
	if !exists {
		return services.Wrap(services.ErrConfiguration, "mirror", "bucket exists",
			fmt.Sprintf("bucket %q not found", c.bucket), nil)
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "mirror", op, "object store timed out", err)
	}
	resp := minio.ToErrorResponse(err)
	marker := services.ErrTransient
	if resp.StatusCode != 0 {
		marker = services.StatusMarker(resp.StatusCode)
		if marker == nil {
			marker = services.ErrExternalTool
		}
	}
	return services.Wrap(marker, "mirror", op, "object store request failed", err)
}
