package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"genstudio/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "/generated/images/a/image.png", []byte("png"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "generated/images/a/image.png" {
		t.Fatalf("unexpected key %q", key)
	}
	data, err := store.Read(ctx, key)
	if err != nil || string(data) != "png" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "a/b.png", want: "a/b.png"},
		{key: "./a//b.png", want: "a/b.png"},
		{key: `a\b.png`, want: "a/b.png"},
		{key: "../etc/passwd", wantErr: true},
		{key: "a/../../b", wantErr: true},
		{key: "   ", wantErr: true},
		{key: "/", wantErr: true},
	}
	for _, tc := range tests {
		got, err := cleanKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Errorf("cleanKey(%q) expected error, got %q", tc.key, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("cleanKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
		}
	}
}

func TestFileStoreHandlerServesArtifacts(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "synthetic/video/x.txt", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	srv := httptest.NewServer(http.StripPrefix("/static", store.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/synthetic/video/x.txt")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}
