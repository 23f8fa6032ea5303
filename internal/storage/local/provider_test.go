package local

import (
	"errors"
	"testing"

	"mediafetch/internal/domain"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestProvider_SaveGetDelete(t *testing.T) {
	p := newProvider(t)

	if err := p.Save("jobs/abc/clip.mp4", []byte("payload")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !p.Exists("jobs/abc/clip.mp4") {
		t.Fatal("Exists = false after Save")
	}
	data, err := p.Get("jobs/abc/clip.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("Get = %q", data)
	}
	size, err := p.Size("jobs/abc/clip.mp4")
	if err != nil || size != int64(len("payload")) {
		t.Fatalf("Size = %d, %v", size, err)
	}

	if err := p.Delete("jobs/abc/clip.mp4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if p.Exists("jobs/abc/clip.mp4") {
		t.Fatal("Exists = true after Delete")
	}
	// Idempotent.
	if err := p.Delete("jobs/abc/clip.mp4"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestProvider_MissingFile(t *testing.T) {
	p := newProvider(t)

	if _, err := p.Get("nope.mp4"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
	if _, err := p.Size("nope.mp4"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Size missing err = %v", err)
	}
	if p.Exists("nope.mp4") {
		t.Fatal("Exists = true for missing file")
	}
}

func TestProvider_RejectsTraversal(t *testing.T) {
	p := newProvider(t)

	for _, path := range []string{"../outside.mp4", "a/../../outside.mp4", ".", ""} {
		if err := p.Save(path, []byte("x")); err == nil {
			t.Fatalf("Save(%q) accepted a path outside the base dir", path)
		}
		if _, err := p.Get(path); err == nil {
			t.Fatalf("Get(%q) accepted a path outside the base dir", path)
		}
		if p.Exists(path) {
			t.Fatalf("Exists(%q) = true", path)
		}
	}
}

func TestNewProvider_RequiresBase(t *testing.T) {
	if _, err := NewProvider("  "); err == nil {
		t.Fatal("empty base dir accepted")
	}
}
