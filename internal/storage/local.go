package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local keeps objects on disk below a root directory. Signed URLs point at
// the API's /uploads route and carry a token that expires like a presigned
// URL would.
type Local struct {
	root    string
	baseURL string
	signer  Signer
}

func NewLocal(root, publicURL string, signer Signer) (*Local, error) {
	if root == "" {
		return nil, errors.New("local storage requires a path")
	}

	if signer == nil {
		return nil, errors.New("local storage requires a signer")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory, %w", err)
	}

	return &Local{
		root:    root,
		baseURL: strings.TrimRight(publicURL, "/"),
		signer:  signer,
	}, nil
}

func (l *Local) path(key string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *Local) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory, %w", err)
	}

	// Write next to the target and rename so readers never see half a file
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file, %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, body)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write object, %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write object, %w", err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("failed to move object in place, %w", err)
	}

	return key, nil
}

func (l *Local) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	token, err := l.signer.SignObject(key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign object url, %w", err)
	}

	u := url.URL{Path: "/uploads/" + key}
	return l.baseURL + u.EscapedPath() + "?token=" + url.QueryEscape(token), nil
}

func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}

	// Start from the deepest directory the prefix names
	start := l.root
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		dir, err := CleanKey(prefix[:i])
		if err != nil {
			return nil, err
		}
		start = filepath.Join(l.root, filepath.FromSlash(dir))
	}

	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects, %w", err)
	}

	return keys, nil
}

func (l *Local) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		p, err := l.path(key)
		if err != nil {
			return err
		}

		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete object %s, %w", key, err)
		}

		l.pruneDirs(filepath.Dir(p))
	}

	return nil
}

// pruneDirs removes now empty directories between dir and the root
func (l *Local) pruneDirs(dir string) {
	root := filepath.Clean(l.root)
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Open returns the object stored under key after checking that token was
// minted for it
func (l *Local) Open(key, token string) (*os.File, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	if err := l.signer.VerifyObject(token, key); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(l.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
