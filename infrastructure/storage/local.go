package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/helixml/damkit/domain/asset"
)

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	Dir string
	// BaseURL prefixes signed URLs, for example "https://dam.example.com/files".
	BaseURL string
	// SigningKey signs URLs. A random key is generated when empty, so URLs
	// do not survive restarts.
	SigningKey string
}

// LocalStore keeps objects on the local filesystem and issues HMAC-signed
// URLs that the API's file route verifies.
type LocalStore struct {
	root    string
	baseURL string
	key     []byte
	now     func() time.Time
}

// NewLocalStore creates the root directory and returns a LocalStore.
func NewLocalStore(cfg LocalConfig) (*LocalStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("local storage directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}

	return &LocalStore{
		root:    cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     key,
		now:     time.Now,
	}, nil
}

func (l *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Put writes r to key, replacing any existing object.
func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

// Get opens key. The content type is sniffed from the file.
func (l *LocalStore) Get(ctx context.Context, key string) (asset.Object, error) {
	if err := ctx.Err(); err != nil {
		return asset.Object{}, err
	}
	src, err := l.path(key)
	if err != nil {
		return asset.Object{}, err
	}

	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return asset.Object{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if err != nil {
		return asset.Object{}, fmt.Errorf("open object: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return asset.Object{}, fmt.Errorf("stat object: %w", err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return asset.Object{}, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return asset.Object{}, fmt.Errorf("rewind object: %w", err)
	}

	return asset.Object{Body: f, ContentType: mtype.String(), Size: info.Size()}, nil
}

// Move renames from to to.
func (l *LocalStore) Move(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := l.path(from)
	if err != nil {
		return err
	}
	dest, err := l.path(to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, from)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	return os.Rename(src, dest)
}

// Delete removes key. Deleting a missing object is an error.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// SignedURL returns "{base}/{key}?expires=..&disposition=..&signature=..".
func (l *LocalStore) SignedURL(_ context.Context, key string, ttl time.Duration, disposition string) (string, error) {
	if _, err := l.path(key); err != nil {
		return "", err
	}
	expires := l.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	if disposition != "" {
		q.Set("disposition", disposition)
	}
	q.Set("signature", l.sign(key, expires, disposition))

	return l.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (l *LocalStore) Verify(key string, expires int64, disposition, signature string) error {
	if l.now().Unix() > expires {
		return ErrInvalidSignature
	}
	expected := l.sign(key, expires, disposition)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (l *LocalStore) sign(key string, expires int64, disposition string) string {
	mac := hmac.New(sha256.New, l.key)
	mac.Write([]byte(key + "\n" + strconv.FormatInt(expires, 10) + "\n" + disposition))
	return hex.EncodeToString(mac.Sum(nil))
}

var _ asset.ObjectStore = (*LocalStore)(nil)
