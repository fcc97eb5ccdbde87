package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("storage init error: %v", err)
	}
	return store
}

func TestSaveAndDelete(t *testing.T) {
	store := newTestLocal(t)

	url, err := store.Save("user_1", "photo.JPG", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/user_1/") {
		t.Fatalf("unexpected url %q", url)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("expected lowercased extension, got %q", url)
	}

	key, ok := store.Key(url)
	if !ok {
		t.Fatalf("expected url %q to map back to a key", url)
	}
	data, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	// Deleting twice is fine.
	if err := store.Delete(key); err != nil {
		t.Fatalf("second delete error: %v", err)
	}
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	store := newTestLocal(t)

	first, err := store.Save("user_1", "a.png", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	second, err := store.Save("user_1", "a.png", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("save error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct object names, got %q twice", first)
	}
}

func TestDeleteRejectsTraversal(t *testing.T) {
	store := newTestLocal(t)

	for _, key := range []string{"../etc/passwd", "..", "/", ""} {
		if err := store.Delete(key); err == nil {
			t.Fatalf("expected traversal key %q to be rejected", key)
		}
	}
}

func TestKeyRejectsForeignURL(t *testing.T) {
	store := newTestLocal(t)

	if _, ok := store.Key("/static/foo.png"); ok {
		t.Fatalf("expected foreign url to be rejected")
	}
}
