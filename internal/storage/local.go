package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey reports a key that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Local stores uploaded files under a directory and serves them by URL.
// Object names are random uuids so uploads never collide or leak the
// original filename.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes the content under folder with a uuid-based name keeping the
// original extension, and returns the public URL.
func (l *Local) Save(folder, filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	key := path.Join(folder, uuid.NewString()+ext)

	target, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return l.URL(key), nil
}

// URL returns the public URL for a storage key.
func (l *Local) URL(key string) string {
	return l.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Key maps a public URL back to its storage key. The second result is false
// when the URL does not belong to this store.
func (l *Local) Key(url string) (string, bool) {
	prefix := l.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Delete removes a stored object. Deleting a missing object is not an error.
func (l *Local) Delete(key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Dir returns the storage root, for mounting a file server over it.
func (l *Local) Dir() string {
	return l.dir
}

// resolve turns a key into an absolute path, rejecting keys that would
// escape the storage root.
func (l *Local) resolve(key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", ErrInvalidKey
	}
	target := filepath.Join(l.dir, filepath.FromSlash(cleaned))
	root := filepath.Clean(l.dir) + string(filepath.Separator)
	if !strings.HasPrefix(target, root) {
		return "", ErrInvalidKey
	}
	return target, nil
}
