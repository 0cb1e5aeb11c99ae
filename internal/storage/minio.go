package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio stores objects in a MinIO bucket through the native client
type Minio struct {
	c      *minio.Client
	bucket string
}

func NewMinio(ctx context.Context, rawEndpoint, accessKey, secretKey, bucket string) (*Minio, error) {
	if rawEndpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, errors.New("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket '%s' does not exist", bucket)
	}

	return &Minio{c: client, bucket: bucket}, nil
}

// normaliseEndpoint accepts either "minio:9000" or a URL with a scheme and
// no path
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, errors.New("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, errors.New("endpoint must not contain a path")
		}

		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

func (m *Minio) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	_, err = m.c.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object, %w", err)
	}

	return key, nil
}

func (m *Minio) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.c.PresignedGetObject(ctx, m.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object url, %w", err)
	}

	return u.String(), nil
}

func (m *Minio) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}

	for obj := range m.c.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects, %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}

func (m *Minio) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		err := m.c.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("failed to delete object %s, %w", key, err)
		}
	}

	return nil
}
