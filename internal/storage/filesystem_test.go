package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "/audit/2025/03/01/b.json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "audit/2025/03/01/b.json" {
		t.Fatalf("key = %q", key)
	}
	if _, err := store.Write(ctx, "audit/2025/03/01/a.json", []byte(`{}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("data = %q", data)
	}

	keys, err := store.List(ctx, "audit")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 || keys[0] != "audit/2025/03/01/a.json" {
		t.Fatalf("keys = %#v", keys)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "nope.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}
	keys, err := store.List(context.Background(), "nothing-here")
	if err != nil || len(keys) != 0 {
		t.Fatalf("List = %#v, %v", keys, err)
	}
}
