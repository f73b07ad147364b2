// Package docservice coordinates vault storage, the document cache and the
// outline index behind the HTTP and MCP surfaces.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/cache"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/checksum"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/storage"
)

// SaveResult is returned after a buffer is flushed to disk.
type SaveResult struct {
	Buffer   models.BufferView    `json:"buffer"`
	Checksum string               `json:"checksum"`
	Parse    document.ParseResult `json:"parse"`
}

// Service coordinates storage, cache and index operations.
type Service struct {
	store  storage.Provider
	db     index.OutlineIndex
	reg    *cache.Registry
	logger *slog.Logger

	// base maps a buffer id to the checksum of the file it was opened
	// over, or "" when the file did not exist.
	mu   sync.Mutex
	base map[string]string
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.OutlineIndex, reg *cache.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, reg: reg, logger: logger, base: map[string]string{}}
}

// ListDocuments returns a page of indexed documents with an optional tag filter.
func (s *Service) ListDocuments(_ context.Context, limit, offset int, tag string) ([]models.DocumentSummary, int, error) {
	return s.db.ListDocuments(limit, offset, tag)
}

// Outline returns the up-to-date outline of path. An open buffer for the
// path takes precedence over the file on disk.
func (s *Service) Outline(ctx context.Context, path string) (models.OutlineView, error) {
	var out models.OutlineView
	err := s.fresh(ctx, path, func(h *cache.Handle, d *document.Document) error {
		out = models.NewOutlineView(path, h.ID(), d)
		return nil
	})
	return out, err
}

// SectionAtLine returns the deepest section containing line.
func (s *Service) SectionAtLine(ctx context.Context, path string, line int) (models.SectionView, error) {
	var out models.SectionView
	err := s.fresh(ctx, path, func(_ *cache.Handle, d *document.Document) error {
		sec := d.SectionAtLine(line)
		if sec == nil {
			return fmt.Errorf("docservice: line %d of %s: %w", line, path, apperr.ErrOutOfRange)
		}
		out = models.NewSectionView(sec, false)
		return nil
	})
	return out, err
}

// SectionByID returns the section with the given path id and its subtree.
func (s *Service) SectionByID(ctx context.Context, path, id string) (models.SectionView, error) {
	var out models.SectionView
	err := s.fresh(ctx, path, func(_ *cache.Handle, d *document.Document) error {
		sec := d.SectionByID(id)
		if sec == nil {
			return fmt.Errorf("docservice: section %q of %s: %w", id, path, apperr.ErrNotFound)
		}
		out = models.NewSectionView(sec, true)
		return nil
	})
	return out, err
}

// Tasks lists the tasks of one document in line order.
func (s *Service) Tasks(ctx context.Context, path string) ([]models.TaskView, error) {
	var out []models.TaskView
	err := s.fresh(ctx, path, func(_ *cache.Handle, d *document.Document) error {
		out = models.TaskViews(d)
		return nil
	})
	return out, err
}

// VaultTasks lists indexed tasks across the vault.
func (s *Service) VaultTasks(_ context.Context, f index.TaskFilter) ([]index.TaskRow, error) {
	return s.db.ListTasks(f)
}

// Task returns one task of path by id.
func (s *Service) Task(ctx context.Context, path, id string) (models.TaskView, error) {
	var out models.TaskView
	err := s.fresh(ctx, path, func(_ *cache.Handle, d *document.Document) error {
		t, sec, ok := d.Task(id)
		if !ok {
			return fmt.Errorf("docservice: task %q of %s: %w", id, path, apperr.ErrNotFound)
		}
		out = models.NewTaskView(t, sec.ID)
		return nil
	})
	return out, err
}

// Stats returns the counters of path.
func (s *Service) Stats(ctx context.Context, path string) (models.StatsView, error) {
	var out models.StatsView
	err := s.fresh(ctx, path, func(_ *cache.Handle, d *document.Document) error {
		out = models.StatsView{Path: path, Version: d.Version(), Stats: d.Stats(), LastParse: d.LastParse()}
		return nil
	})
	return out, err
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	return s.db.Search(query, limit)
}

// OpenBuffer starts editing path. With lines nil the file is read from the
// vault; a missing file is an error. With lines given the file may not
// exist yet and is created on save.
func (s *Service) OpenBuffer(ctx context.Context, path string, lines []string) (models.BufferView, error) {
	if err := ctx.Err(); err != nil {
		return models.BufferView{}, err
	}
	base := ""
	data, err := s.store.Read(path)
	switch {
	case err == nil:
		base = checksum.Sum(data)
		if lines == nil {
			lines = parser.SplitLines(data)
		}
	case errors.Is(err, apperr.ErrNotFound) && lines != nil:
	default:
		return models.BufferView{}, err
	}

	h, err := s.reg.OpenBuffer(path, lines)
	if err != nil {
		return models.BufferView{}, err
	}
	s.setBase(h.ID(), base)
	return s.bufferView(h), nil
}

// Buffers lists the open buffers.
func (s *Service) Buffers(_ context.Context) []models.BufferView {
	hs := s.reg.Buffers()
	out := make([]models.BufferView, 0, len(hs))
	for _, h := range hs {
		out = append(out, s.bufferView(h))
	}
	return out
}

// CloseBuffer discards a buffer without saving it.
func (s *Service) CloseBuffer(_ context.Context, id string) error {
	if err := s.reg.CloseBuffer(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.base, id)
	s.mu.Unlock()
	return nil
}

// ApplyEdits applies edits to a buffer and returns its state. Edits that
// fail are skipped and reported in the joined error; the rest stay applied.
func (s *Service) ApplyEdits(_ context.Context, id string, edits []document.Edit) (models.BufferView, error) {
	h, err := s.buffer(id)
	if err != nil {
		return models.BufferView{}, err
	}
	applyErr := h.Apply(edits...)
	return s.bufferView(h), applyErr
}

// BufferOutline returns the outline of a buffer. With fresh set pending
// edits are parsed first; otherwise the last parse is returned as is.
func (s *Service) BufferOutline(_ context.Context, id string, fresh bool) (models.OutlineView, error) {
	h, err := s.buffer(id)
	if err != nil {
		return models.OutlineView{}, err
	}
	var out models.OutlineView
	read := func(d *document.Document) error {
		out = models.NewOutlineView(h.Path(), h.ID(), d)
		return nil
	}
	if fresh {
		err = h.Fresh(read)
	} else {
		err = h.View(read)
	}
	return out, err
}

// SaveBuffer flushes a buffer: pending edits are parsed, the lines are
// written to the vault and the new outline is indexed. If the file changed
// on disk since the buffer was opened or last saved, the save fails with
// apperr.ErrConflict unless force is set.
func (s *Service) SaveBuffer(_ context.Context, id string, force bool) (SaveResult, error) {
	h, err := s.buffer(id)
	if err != nil {
		return SaveResult{}, err
	}
	if !force {
		if err := s.checkBase(h); err != nil {
			return SaveResult{}, err
		}
	}
	lines, res, err := h.Save()
	if err != nil {
		return SaveResult{}, err
	}
	data := parser.JoinLines(lines)
	if err := s.store.Write(h.Path(), data); err != nil {
		return SaveResult{}, fmt.Errorf("docservice: save %s: %w", h.Path(), err)
	}

	out := SaveResult{Checksum: checksum.Sum(data), Parse: res}
	s.setBase(h.ID(), out.Checksum)
	err = h.View(func(d *document.Document) error {
		out.Buffer = models.NewBufferView(h.ID(), h.Path(), d)
		return index.IndexDocument(s.db, h.Path(), out.Checksum, d, time.Now())
	})
	if err != nil {
		return out, fmt.Errorf("docservice: index %s: %w", h.Path(), err)
	}
	s.logger.Debug("docservice: buffer saved",
		slog.String("path", h.Path()),
		slog.String("buffer", h.ID()),
		slog.Int64("version", res.Version))
	return out, nil
}

// DeleteDocument removes a file from the vault, the index and the cache.
func (s *Service) DeleteDocument(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	s.reg.Invalidate(path)
	return s.db.DeleteDocument(path)
}

// FileChanged drops the cached copy of a file changed on disk so that the
// next query reloads it. It matches index.EventCallback.
func (s *Service) FileChanged(kind, path string) {
	if s.reg.Invalidate(path) {
		s.logger.Debug("docservice: cached file invalidated",
			slog.String("path", path),
			slog.String("change", kind))
	}
}

func (s *Service) fresh(ctx context.Context, path string, fn func(*cache.Handle, *document.Document) error) error {
	if path == "" {
		return fmt.Errorf("docservice: empty path: %w", apperr.ErrNotFound)
	}
	h, err := s.reg.GetFile(ctx, path)
	if err != nil {
		return err
	}
	return h.Fresh(func(d *document.Document) error { return fn(h, d) })
}

// checkBase compares the file on disk with the content the buffer started
// from. A file deleted underneath the buffer is simply recreated.
func (s *Service) checkBase(h *cache.Handle) error {
	s.mu.Lock()
	base := s.base[h.ID()]
	s.mu.Unlock()

	data, err := s.store.Read(h.Path())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sum := checksum.Sum(data); sum != base {
		return fmt.Errorf("docservice: save %s: changed on disk: %w", h.Path(), apperr.ErrConflict)
	}
	return nil
}

func (s *Service) setBase(id, sum string) {
	s.mu.Lock()
	s.base[id] = sum
	s.mu.Unlock()
}

func (s *Service) buffer(id string) (*cache.Handle, error) {
	h, ok := s.reg.Buffer(id)
	if !ok {
		return nil, fmt.Errorf("docservice: buffer %s: %w", id, apperr.ErrNotFound)
	}
	return h, nil
}

func (s *Service) bufferView(h *cache.Handle) models.BufferView {
	var v models.BufferView
	_ = h.View(func(d *document.Document) error {
		v = models.NewBufferView(h.ID(), h.Path(), d)
		return nil
	})
	return v
}
