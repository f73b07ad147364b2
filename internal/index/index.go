package index

import "github.com/t-wilkinson/zortex.nvim-sub001/internal/models"

// OutlineIndex defines the interface for outline indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type OutlineIndex interface {
	UpsertDocument(doc models.DocumentSummary, sections []SectionRow, tasks []TaskRow) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*models.DocumentSummary, error)
	ListDocuments(limit, offset int, tag string) ([]models.DocumentSummary, int, error)
	ListTasks(f TaskFilter) ([]TaskRow, error)
	Search(query string, limit int) ([]models.SearchHit, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies OutlineIndex at compile time.
var _ OutlineIndex = (*DB)(nil)
