package index

import (
	"log/slog"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/checksum"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, logger); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data from scratch and upserts it into the DB.
func indexFile(db OutlineIndex, path string, data []byte, logger *slog.Logger) error {
	d := document.New(parser.SplitLines(data), document.WithLogger(logger.With(slog.String("path", path))))
	d.Parse()
	return IndexDocument(db, path, checksum.Sum(data), d, time.Now())
}

// IndexDocument upserts the last parse of d. The caller must hold whatever
// lock guards d.
func IndexDocument(db OutlineIndex, path, sum string, d *document.Document, updatedAt time.Time) error {
	stats := d.Stats()
	summary := models.DocumentSummary{
		Path:      path,
		Title:     title(d),
		Checksum:  sum,
		Tags:      d.Metadata().Tags,
		Sections:  stats.Sections,
		Tasks:     stats.Tasks,
		Completed: stats.Completed,
		UpdatedAt: updatedAt,
	}
	sections, tasks := Rows(path, d)
	return db.UpsertDocument(summary, sections, tasks)
}

// title is the declared article name, else the first top-level heading.
func title(d *document.Document) string {
	root := d.Root()
	if root.Text != "" {
		return root.Text
	}
	for _, c := range root.Children {
		if c.Type == outline.Heading && c.Level == 1 {
			return c.Text
		}
	}
	return ""
}

// Rows flattens the outline of d into table rows. The synthetic root is
// not stored.
func Rows(path string, d *document.Document) ([]SectionRow, []TaskRow) {
	var (
		sections []SectionRow
		tasks    []TaskRow
	)
	outline.Walk(d.Root(), func(s *outline.Section) bool {
		if !s.IsRoot() {
			sections = append(sections, SectionRow{
				ID:        s.ID,
				Type:      s.Type.String(),
				Level:     s.Level,
				Text:      s.Text,
				StartLine: s.StartLine,
				EndLine:   s.EndLine,
			})
		}
		for _, t := range s.Tasks {
			tasks = append(tasks, TaskRow{Path: path, TaskView: models.NewTaskView(t, s.ID)})
		}
		return true
	})
	return sections, tasks
}
