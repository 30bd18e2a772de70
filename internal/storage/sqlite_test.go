package storage

import (
	"context"
	"path/filepath"
	"testing"
)

// TestSQLitePersistsAcrossReopen verifies records survive closing and reopening the file.
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mafwalk.db")
	ctx := context.Background()

	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := b.SetMulti(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}); err != nil {
		t.Fatalf("SetMulti: %v", err)
	}
	b.Close()

	b, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, ok, err := b.Get(ctx, key)
		if err != nil || !ok || string(got) != want {
			t.Errorf("Get(%s) = %q, %v, %v; want %q", key, got, ok, err, want)
		}
	}

	if err := b.Remove(ctx, "a", "missing"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "a"); ok {
		t.Error("key a still present after Remove")
	}
}

// TestOpenUnknownDriver verifies driver validation.
func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "redis", ""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	b, err := Open(context.Background(), DriverMemory, "")
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	b.Close()
}
