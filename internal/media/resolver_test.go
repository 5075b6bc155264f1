package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// 1x1 transparent PNG used across the reference-shape tests.
var pngBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d}

func TestResolveRemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	blob, err := NewResolver().Resolve(context.Background(), srv.URL+"/img.png", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if blob.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", blob.MIMEType)
	}
	if !bytes.Equal(blob.Data, pngBytes) {
		t.Fatalf("data mismatch")
	}
}

func TestResolveRemoteURLNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewResolver().Resolve(context.Background(), srv.URL+"/gone.png", "")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Resolve() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404", fetchErr.StatusCode)
	}
}

func TestResolveDataURI(t *testing.T) {
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	blob, err := NewResolver().Resolve(context.Background(), ref, "image/jpeg")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// The data URI prefix wins over the hint.
	if blob.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", blob.MIMEType)
	}
	if !bytes.Equal(blob.Data, pngBytes) {
		t.Fatalf("data mismatch")
	}
}

func TestResolveDataURIIdempotent(t *testing.T) {
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	resolver := NewResolver()

	first, err := resolver.Resolve(context.Background(), ref, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := resolver.Resolve(context.Background(), ref, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) || first.MIMEType != second.MIMEType {
		t.Fatalf("resolving the same reference twice differed")
	}
}

func TestResolveLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
		t.Fatal(err)
	}

	blob, err := NewResolver().Resolve(context.Background(), path, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if blob.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", blob.MIMEType)
	}
	if !bytes.Equal(blob.Data, pngBytes) {
		t.Fatalf("data mismatch")
	}
}

func TestResolveRawBase64Fallback(t *testing.T) {
	ref := base64.StdEncoding.EncodeToString(pngBytes)

	blob, err := NewResolver().Resolve(context.Background(), ref, "image/png")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !bytes.Equal(blob.Data, pngBytes) {
		t.Fatalf("data mismatch")
	}
}

func TestResolveUnknownMediaType(t *testing.T) {
	ref := base64.StdEncoding.EncodeToString(pngBytes)

	// No hint, no extension to guess from.
	_, err := NewResolver().Resolve(context.Background(), ref, "")
	if !errors.Is(err, ErrUnknownMediaType) {
		t.Fatalf("Resolve() error = %v, want ErrUnknownMediaType", err)
	}
}

func TestResolveGarbageReference(t *testing.T) {
	_, err := NewResolver().Resolve(context.Background(), "definitely not base64!!!", "image/png")
	if err == nil {
		t.Fatalf("expected error for undecodable reference")
	}
}
