package cache

import (
	"fmt"
	"sync"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/reparse"
)

// Handle owns one Document. Its mutex serialises the single logical writer
// with readers; the Document itself is never touched without it. Events are
// pushed after the mutex is released.
type Handle struct {
	mu      sync.Mutex
	doc     *document.Document
	results []document.ParseResult

	kind  Kind
	path  string
	id    string
	sched *reparse.Scheduler
	reg   *Registry
}

// Kind reports whether the handle is buffer- or file-bound.
func (h *Handle) Kind() Kind { return h.kind }

// Path is the vault-relative file path.
func (h *Handle) Path() string { return h.path }

// ID is the buffer id, or "" for file-bound handles.
func (h *Handle) ID() string { return h.id }

// View calls fn with the document as of the last parse. Edits made since
// then are in the lines but not yet in the outline.
func (h *Handle) View(fn func(*document.Document) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.doc)
}

// Fresh parses pending edits, dropping any scheduled run, then calls fn.
func (h *Handle) Fresh(fn func(*document.Document) error) error {
	if h.sched != nil {
		h.sched.Cancel()
	}
	h.mu.Lock()
	if h.doc.NeedsParse() {
		h.doc.Parse()
	}
	err := fn(h.doc)
	results := h.takeResults()
	h.mu.Unlock()

	h.reg.emitParsed(h, results)
	return err
}

// Apply performs a batch of edits and schedules a reparse. Failed edits
// are skipped; their errors are returned joined.
func (h *Handle) Apply(edits ...document.Edit) error {
	if h.kind != KindBuffer {
		return fmt.Errorf("cache: apply to %s: %w", h.path, apperr.ErrReadOnly)
	}
	h.mu.Lock()
	err := h.doc.ApplyEdits(edits)
	h.mu.Unlock()

	h.sched.Schedule()
	return err
}

// UpdateLine replaces one line of a buffer.
func (h *Handle) UpdateLine(line int, text string) error {
	return h.Apply(document.Edit{Op: document.OpUpdate, Start: line, Lines: []string{text}})
}

// InsertLines inserts lines before line at.
func (h *Handle) InsertLines(at int, lines []string) error {
	return h.Apply(document.Edit{Op: document.OpInsert, Start: at, Lines: lines})
}

// DeleteLines removes lines [start, end].
func (h *Handle) DeleteLines(start, end int) error {
	return h.Apply(document.Edit{Op: document.OpDelete, Start: start, End: end})
}

// ReplaceLines replaces lines [start, end].
func (h *Handle) ReplaceLines(start, end int, lines []string) error {
	return h.Apply(document.Edit{Op: document.OpReplace, Start: start, End: end, Lines: lines})
}

// Save is the flush signal: any pending parse runs now and a synced event
// follows it. The returned lines are what should be written out.
func (h *Handle) Save() ([]string, document.ParseResult, error) {
	if h.kind != KindBuffer {
		return nil, document.ParseResult{}, fmt.Errorf("cache: save %s: %w", h.path, apperr.ErrReadOnly)
	}
	h.sched.Force()

	h.mu.Lock()
	lines := h.doc.Lines()
	res := h.doc.LastParse()
	h.mu.Unlock()

	h.reg.emit(Event{Type: EventSynced, Kind: h.kind, Path: h.path, BufferID: h.id, Version: res.Version, Parse: &res})
	return lines, res, nil
}

// reparse is the scheduler callback.
func (h *Handle) reparse() {
	h.mu.Lock()
	if h.doc.NeedsParse() {
		h.doc.Parse()
	}
	results := h.takeResults()
	h.mu.Unlock()

	h.reg.emitParsed(h, results)
}

// observe collects parse results; it runs inside Parse with h.mu held.
func (h *Handle) observe(_ *document.Document, res document.ParseResult) {
	h.results = append(h.results, res)
}

func (h *Handle) takeResults() []document.ParseResult {
	out := h.results
	h.results = nil
	return out
}

func (h *Handle) stop() {
	if h.sched != nil {
		h.sched.Stop()
	}
}

func (h *Handle) version() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Version()
}
