//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the sections and tasks tables.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ []SectionRow, _ []TaskRow) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over section and task text (fallback
// when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, 'section', id, start_line, substr(text, 1, 200) FROM sections WHERE text LIKE ?
		UNION ALL
		SELECT path, 'task', id, line, substr(text, 1, 200) FROM tasks WHERE text LIKE ?
		ORDER BY 1, 4
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []models.SearchHit{}
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Path, &h.Kind, &h.ID, &h.Line, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
