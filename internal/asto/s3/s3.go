// Package s3 implements asto.Storage for MinIO and other S3-compatible object
// stores. Object writes are atomic on the server side, so Save streams the
// content straight into PutObject.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/artipie/artipie/internal/asto"
)

// Config holds S3 storage configuration.
type Config struct {
	// Endpoint is the server address (e.g. "localhost:9000").
	Endpoint string

	// Bucket is the bucket holding repository data.
	Bucket string

	AccessKey string
	SecretKey string

	// UseSSL enables HTTPS connections.
	UseSSL bool

	// Prefix is an optional prefix for all object keys.
	Prefix string

	// Client is an optional pre-configured client. When set, Endpoint and
	// credentials are ignored.
	Client *minio.Client
}

func (c *Config) validate() error {
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	if c.Client != nil {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("endpoint is required when client is not provided")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("access key and secret key are required")
	}
	return nil
}

// Storage implements asto.Storage on a single bucket.
type Storage struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates an S3-backed storage.
func New(cfg Config) (*Storage, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *Storage) objectName(key asto.Key) string {
	if s.prefix == "" {
		return key.String()
	}
	return s.prefix + "/" + key.String()
}

func (s *Storage) Exists(ctx context.Context, key asto.Key) (bool, error) {
	if key.IsRoot() {
		return false, nil
	}
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 stat %s: %w", key, err)
	}
	return true, nil
}

func (s *Storage) Value(ctx context.Context, key asto.Key) (asto.Content, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return nil, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, asto.NotFoundError(key)
		}
		return nil, fmt.Errorf("s3 stat %s: %w", key, err)
	}
	return &objectContent{storage: s, ctx: ctx, name: s.objectName(key), size: info.Size}, nil
}

func (s *Storage) Save(ctx context.Context, key asto.Key, content asto.Content) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	body, err := content.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	size, known := content.Size()
	if !known {
		size = -1
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.objectName(key), body, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key asto.Key) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Metadata(ctx context.Context, key asto.Key) (asto.Meta, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return asto.Meta{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return asto.Meta{}, asto.NotFoundError(key)
		}
		return asto.Meta{}, fmt.Errorf("s3 stat %s: %w", key, err)
	}
	return asto.Meta{Size: info.Size, Updated: info.LastModified.UTC()}, nil
}

func (s *Storage) List(ctx context.Context, prefix asto.Key) ([]asto.Key, error) {
	listPrefix := ""
	if !prefix.IsRoot() {
		listPrefix = s.objectName(prefix)
	} else if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var keys []asto.Key
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, obj.Err)
		}
		name := obj.Key
		if s.prefix != "" {
			name = strings.TrimPrefix(name, s.prefix+"/")
		}
		key := asto.NewKey(name)
		if key.HasPrefix(prefix) {
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

type objectContent struct {
	storage *Storage
	ctx     context.Context
	name    string
	size    int64
}

func (c *objectContent) Open() (io.ReadCloser, error) {
	obj, err := c.storage.client.GetObject(c.ctx, c.storage.bucket, c.name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", c.name, err)
	}
	return obj, nil
}

func (c *objectContent) Size() (int64, bool) {
	return c.size, true
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
