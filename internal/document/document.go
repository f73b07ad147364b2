// Package document keeps a zortex outline in sync with an editable line
// store. Edits only record dirty ranges; Parse turns them into either a full
// rebuild or an incremental splice of the section tree.
//
// A Document is not safe for concurrent use. Callers serialise access, see
// the cache package.
package document

import (
	"log/slog"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/clock"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
)

// Stats counts what the last parse found.
type Stats struct {
	Sections  int `json:"sections"`
	Tasks     int `json:"tasks"`
	Completed int `json:"completed"`
}

// ParseResult describes one committed parse.
type ParseResult struct {
	Full     bool          `json:"full"`
	Version  int64         `json:"version"`
	Duration time.Duration `json:"duration"`
	Ranges   int           `json:"ranges"`
	Reason   string        `json:"reason,omitempty"`
}

// Document owns the lines of one zortex file and the outline derived from
// them.
type Document struct {
	lines []string
	meta  parser.Metadata

	root     *outline.Section
	byLine   []*outline.Section
	byID     map[string]*outline.Section
	tasks    []*outline.Task
	taskByID map[string]taskRef

	sums   []uint64 // per-line checksum as of the last parse
	fences []string // open fence marker after each line, "" outside

	dirty   *DirtyTracker
	stats   Stats
	version int64
	last    ParseResult
	parsed  bool

	parsing bool
	queued  bool

	metadataLines int
	budget        time.Duration
	attrs         *parser.Registry
	clock         clock.Clock
	logger        *slog.Logger
	observer      func(*Document, ParseResult)
}

type taskRef struct {
	task    *outline.Task
	section *outline.Section
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for budget warnings and skipped edits.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithMetadataLines bounds the metadata scan.
func WithMetadataLines(n int) Option {
	return func(d *Document) { d.metadataLines = n }
}

// WithThresholds sets the dirty extent beyond which Parse rebuilds the
// whole tree.
func WithThresholds(maxLines, maxRanges int) Option {
	return func(d *Document) { d.dirty = NewDirtyTracker(maxLines, maxRanges) }
}

// WithParseBudget logs a warning for any parse slower than budget.
func WithParseBudget(budget time.Duration) Option {
	return func(d *Document) { d.budget = budget }
}

// WithAttributes replaces the attribute registry.
func WithAttributes(r *parser.Registry) Option {
	return func(d *Document) { d.attrs = r }
}

// WithClock sets the time source used to measure parses.
func WithClock(c clock.Clock) Option {
	return func(d *Document) { d.clock = c }
}

// WithObserver registers fn to run after every committed parse. A Parse
// call made from fn is queued and runs once the current parse returns.
func WithObserver(fn func(*Document, ParseResult)) Option {
	return func(d *Document) { d.observer = fn }
}

// New returns an unparsed document holding a copy of lines.
func New(lines []string, opts ...Option) *Document {
	d := &Document{
		lines:         append([]string(nil), lines...),
		metadataLines: parser.DefaultMetadataLines,
		attrs:         parser.Default,
		clock:         clock.Real(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dirty == nil {
		d.dirty = NewDirtyTracker(0, 0)
	}
	d.root = outline.NewRoot("", len(d.lines))
	d.byID = map[string]*outline.Section{}
	d.taskByID = map[string]taskRef{}
	return d
}

// Root returns the synthetic section spanning the document.
func (d *Document) Root() *outline.Section { return d.root }

// Version increases with every committed parse.
func (d *Document) Version() int64 { return d.version }

// LastParse describes the most recent committed parse.
func (d *Document) LastParse() ParseResult { return d.last }

// Metadata returns the metadata prefix found by the last full parse.
func (d *Document) Metadata() parser.Metadata { return d.meta }

// Stats returns the counts computed by the last parse.
func (d *Document) Stats() Stats { return d.stats }

// LineCount returns the current number of lines.
func (d *Document) LineCount() int { return len(d.lines) }

// Lines returns a copy of the current lines.
func (d *Document) Lines() []string {
	return append([]string(nil), d.lines...)
}

// Dirty returns the ranges edited since the last parse.
func (d *Document) Dirty() []DirtyRange { return d.dirty.Ranges() }

// NeedsParse reports whether edits are waiting or no parse has run yet.
func (d *Document) NeedsParse() bool {
	return !d.parsed || d.dirty.Len() > 0
}

// SectionAtLine returns the deepest section containing line as of the last
// parse, or nil when line is outside the document.
func (d *Document) SectionAtLine(line int) *outline.Section {
	if line < 1 || line > len(d.byLine) {
		return nil
	}
	return d.byLine[line-1]
}

// SectionByID returns the section with the given path id.
func (d *Document) SectionByID(id string) *outline.Section {
	return d.byID[id]
}

// Tasks returns every task in line order.
func (d *Document) Tasks() []*outline.Task {
	return append([]*outline.Task(nil), d.tasks...)
}

// Task returns the task with the given id and the section that owns it.
func (d *Document) Task(id string) (*outline.Task, *outline.Section, bool) {
	ref, ok := d.taskByID[id]
	if !ok {
		return nil, nil, false
	}
	return ref.task, ref.section, true
}
