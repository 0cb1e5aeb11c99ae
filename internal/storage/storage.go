// Package storage provides the object store media bytes live in. Every
// backend honours the same contract so the rest of the application never
// knows where objects actually are.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrNotFound   = errors.New("object not found")
)

type Store interface {
	// Put writes body under key and returns the key it was stored at
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// SignedURL returns a URL that allows reading key until ttl elapses
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// List returns every key that starts with prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Signer mints and checks the tokens appended to local object URLs
type Signer interface {
	SignObject(key string, ttl time.Duration) (string, error)
	VerifyObject(token, key string) error
}

type Options struct {
	// s3, r2 or minio. Ignored when Bucket is empty.
	Provider        string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	AccountID       string

	LocalPath string
	PublicURL string
	Signer    Signer
}

// New picks the backend described by o. An empty bucket selects the local
// filesystem backend.
func New(ctx context.Context, o Options) (Store, error) {
	if o.Bucket == "" {
		return NewLocal(o.LocalPath, o.PublicURL, o.Signer)
	}

	switch o.Provider {
	case "", "s3":
		return NewS3(ctx, S3Options{
			Bucket:          o.Bucket,
			Region:          o.Region,
			Endpoint:        o.Endpoint,
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
		})
	case "r2":
		if o.AccountID == "" {
			return nil, errors.New("r2 storage requires an account id")
		}

		return NewS3(ctx, S3Options{
			Bucket:          o.Bucket,
			Region:          "auto",
			Endpoint:        fmt.Sprintf("https://%s.r2.cloudflarestorage.com", o.AccountID),
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
		})
	case "minio":
		return NewMinio(ctx, o.Endpoint, o.AccessKeyID, o.SecretAccessKey, o.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", o.Provider)
	}
}

// CleanKey validates a slash separated object key. Keys must be relative
// and may not climb out of their root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}

	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}

	return cleaned, nil
}
