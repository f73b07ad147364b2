package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
)

// SectionRow represents a row in the sections table.
type SectionRow struct {
	ID        string
	Type      string
	Level     int
	Text      string
	StartLine int
	EndLine   int
}

// TaskRow is a task together with the document it lives in.
type TaskRow struct {
	Path string `json:"path"`
	models.TaskView
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Path      string
	Completed *bool
	Limit     int
}

// UpsertDocument replaces a document row together with its sections, tasks
// and FTS entries within a transaction.
func (db *DB) UpsertDocument(doc models.DocumentSummary, sections []SectionRow, tasks []TaskRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, tags, sections, tasks, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			sections   = excluded.sections,
			tasks      = excluded.tasks,
			completed  = excluded.completed,
			updated_at = excluded.updated_at
	`, doc.Path, doc.Title, doc.Checksum, string(tagsJSON), doc.Sections, doc.Tasks, doc.Completed, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM sections WHERE path = ?`, doc.Path); err != nil {
		return fmt.Errorf("index: clear sections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE path = ?`, doc.Path); err != nil {
		return fmt.Errorf("index: clear tasks: %w", err)
	}

	if len(sections) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO sections (path, id, type, level, text, start_line, end_line) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare section insert: %w", err)
		}
		defer stmt.Close()
		for _, s := range sections {
			if _, err := stmt.Exec(doc.Path, s.ID, s.Type, s.Level, s.Text, s.StartLine, s.EndLine); err != nil {
				return fmt.Errorf("index: insert section: %w", err)
			}
		}
	}

	if len(tasks) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO tasks (path, id, section, line, text, completed, attributes) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tasks {
			attrs := []byte("{}")
			if len(t.Attributes) > 0 {
				if b, err := json.Marshal(t.Attributes); err == nil {
					attrs = b
				}
			}
			if _, err := stmt.Exec(doc.Path, t.ID, t.Section, t.Line, t.Text, t.Completed, string(attrs)); err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
		}
	}

	if err := ftsUpsert(tx, doc.Path, sections, tasks); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its sections, tasks and FTS entries.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM sections WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const documentColumns = `path, title, checksum, tags, sections, tasks, completed, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (models.DocumentSummary, error) {
	var (
		d    models.DocumentSummary
		tags string
	)
	if err := row.Scan(&d.Path, &d.Title, &d.Checksum, &tags, &d.Sections, &d.Tasks, &d.Completed, &d.UpdatedAt); err != nil {
		return d, err
	}
	_ = json.Unmarshal([]byte(tags), &d.Tags)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d, nil
}

// GetDocument returns one indexed document.
func (db *DB) GetDocument(path string) (*models.DocumentSummary, error) {
	d, err := scanDocument(db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: document %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns a page of documents ordered by path and the total
// count. A non-empty tag keeps documents declaring that tag.
func (db *DB) ListDocuments(limit, offset int, tag string) ([]models.DocumentSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := ""
	var args []any
	if tag != "" {
		where = ` WHERE tags LIKE ?`
		quoted, _ := json.Marshal(tag)
		args = append(args, "%"+string(quoted)+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents`+where+` ORDER BY path LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentSummary{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// ListTasks returns indexed tasks ordered by path and line.
func (db *DB) ListTasks(f TaskFilter) ([]TaskRow, error) {
	var (
		conds []string
		args  []any
	)
	if f.Path != "" {
		conds = append(conds, "path = ?")
		args = append(args, f.Path)
	}
	if f.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, *f.Completed)
	}
	query := `SELECT path, id, section, line, text, completed, attributes FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY path, line"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list tasks: %w", err)
	}
	defer rows.Close()

	out := []TaskRow{}
	for rows.Next() {
		var (
			t     TaskRow
			attrs string
		)
		if err := rows.Scan(&t.Path, &t.ID, &t.Section, &t.Line, &t.Text, &t.Completed, &attrs); err != nil {
			return nil, err
		}
		if attrs != "{}" {
			_ = json.Unmarshal([]byte(attrs), &t.Attributes)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
