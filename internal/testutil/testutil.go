// Package testutil provides shared test helpers for setting up vaults,
// databases and document registries.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/cache"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/reparse"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/storage"
)

// Quiet is a logger that drops everything.
var Quiet = slog.New(slog.DiscardHandler)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "zortex-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestRegistry creates a registry loading from store. Buffers use the
// deferred policy so that tests decide when parses happen.
func TestRegistry(t *testing.T, store storage.Provider, opts ...cache.Option) *cache.Registry {
	t.Helper()
	base := []cache.Option{
		cache.WithLogger(Quiet),
		cache.WithPolicy(reparse.Deferred, 0),
		cache.WithDocumentOptions(document.WithLogger(Quiet)),
	}
	reg, err := cache.New(store, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(reg.Close)
	return reg
}

// WriteFiles writes each path/content pair into the vault.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}
