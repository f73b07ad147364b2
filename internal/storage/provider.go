// Package storage defines the vault file-system abstraction.
package storage

import (
	"context"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
)

// Ext is the extension of every zortex document in the vault.
const Ext = ".zortex"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every zortex file under dir (relative to vault root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Load returns the lines of the file at path; it satisfies cache.Loader.
	Load(ctx context.Context, path string) ([]string, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
}
