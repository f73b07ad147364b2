package document

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
)

// EditOp names a line-store mutation.
type EditOp string

const (
	OpUpdate  EditOp = "update"
	OpInsert  EditOp = "insert"
	OpDelete  EditOp = "delete"
	OpReplace EditOp = "replace"
	OpSet     EditOp = "set"
)

// Edit is one mutation as delivered by an editing surface. Start and End
// are 1-based and inclusive; Insert places Lines before Start.
type Edit struct {
	Op    EditOp   `json:"op"`
	Start int      `json:"start"`
	End   int      `json:"end,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// Mutators only change the line store and record dirty ranges. They never
// parse.

// UpdateLine replaces the text of one line.
func (d *Document) UpdateLine(line int, text string) error {
	if line < 1 || line > len(d.lines) {
		return fmt.Errorf("document: update line %d of %d: %w", line, len(d.lines), apperr.ErrOutOfRange)
	}
	d.lines[line-1] = text
	d.dirty.Record(line, line, Modify, 0)
	return nil
}

// InsertLines inserts lines before line at. at may be one past the last
// line to append.
func (d *Document) InsertLines(at int, lines []string) error {
	if at < 1 || at > len(d.lines)+1 {
		return fmt.Errorf("document: insert at %d of %d: %w", at, len(d.lines), apperr.ErrOutOfRange)
	}
	k := len(lines)
	if k == 0 {
		return nil
	}
	out := make([]string, 0, len(d.lines)+k)
	out = append(out, d.lines[:at-1]...)
	out = append(out, lines...)
	d.lines = append(out, d.lines[at-1:]...)
	d.dirty.Record(at, at+k-1, Insert, k)
	return nil
}

// DeleteLines removes lines [start, end].
func (d *Document) DeleteLines(start, end int) error {
	if start < 1 || end < start || end > len(d.lines) {
		return fmt.Errorf("document: delete %d-%d of %d: %w", start, end, len(d.lines), apperr.ErrOutOfRange)
	}
	count := end - start + 1
	d.lines = append(d.lines[:start-1], d.lines[end:]...)
	at := max(1, min(start, len(d.lines)))
	d.dirty.Record(at, at, Delete, -count)
	return nil
}

// ReplaceLines replaces lines [start, end] with lines, which may be of a
// different length.
func (d *Document) ReplaceLines(start, end int, lines []string) error {
	if start < 1 || end < start || end > len(d.lines) {
		return fmt.Errorf("document: replace %d-%d of %d: %w", start, end, len(d.lines), apperr.ErrOutOfRange)
	}
	if len(lines) == 0 {
		return d.DeleteLines(start, end)
	}
	out := make([]string, 0, len(d.lines)-(end-start+1)+len(lines))
	out = append(out, d.lines[:start-1]...)
	out = append(out, lines...)
	d.lines = append(out, d.lines[end:]...)
	m := len(lines)
	d.dirty.Record(start, start+m-1, Modify, m-(end-start+1))
	return nil
}

// SetLines replaces the whole line store. The recorded range covers the
// document, so the next parse is full.
func (d *Document) SetLines(lines []string) {
	delta := len(lines) - len(d.lines)
	d.lines = append([]string(nil), lines...)
	d.dirty.Record(1, max(len(d.lines), 1), Modify, delta)
}

// Apply performs a single edit.
func (d *Document) Apply(e Edit) error {
	switch e.Op {
	case OpUpdate:
		if len(e.Lines) != 1 {
			return fmt.Errorf("document: update needs exactly one line, got %d", len(e.Lines))
		}
		return d.UpdateLine(e.Start, e.Lines[0])
	case OpInsert:
		return d.InsertLines(e.Start, e.Lines)
	case OpDelete:
		return d.DeleteLines(e.Start, endOf(e))
	case OpReplace:
		return d.ReplaceLines(e.Start, endOf(e), e.Lines)
	case OpSet:
		d.SetLines(e.Lines)
		return nil
	default:
		return fmt.Errorf("document: unknown edit op %q", e.Op)
	}
}

// ApplyEdits applies a batch in order. A failing edit is logged and skipped;
// the rest of the batch still applies and the failures are returned joined.
func (d *Document) ApplyEdits(edits []Edit) error {
	var errs []error
	for i, e := range edits {
		if err := d.Apply(e); err != nil {
			d.logger.Warn("document: edit skipped",
				slog.Int("index", i),
				slog.String("op", string(e.Op)),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("edit %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func endOf(e Edit) int {
	if e.End == 0 {
		return e.Start
	}
	return e.End
}
