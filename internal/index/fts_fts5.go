//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS outline_fts USING fts5(
			path UNINDEXED,
			kind UNINDEXED,
			id UNINDEXED,
			line UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path string, sections []SectionRow, tasks []TaskRow) error {
	ftsDelete(tx, path)
	stmt, err := tx.Prepare(`INSERT INTO outline_fts (path, kind, id, line, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for _, s := range sections {
		if _, err := stmt.Exec(path, "section", s.ID, s.StartLine, s.Text); err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	for _, t := range tasks {
		if _, err := stmt.Exec(path, "task", t.ID, t.Line, t.Text); err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM outline_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search over section and task text and
// returns matches with snippets.
func (db *DB) Search(query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       kind,
		       id,
		       line,
		       snippet(outline_fts, 4, '<b>', '</b>', '...', 32)
		FROM outline_fts
		WHERE outline_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
