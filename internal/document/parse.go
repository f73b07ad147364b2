package document

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/checksum"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/clock"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
)

// Reasons reported in ParseResult.Reason.
const (
	ReasonInitial   = "initial"
	ReasonForced    = "forced"
	ReasonThreshold = "threshold"
	ReasonMetadata  = "metadata"
	ReasonFence     = "fence"
	ReasonEscape    = "escape"
	ReasonSwallow   = "swallow"
	ReasonDrift     = "drift"
)

// Parse brings the outline up to date with the lines. The first parse is
// always full; later ones try the incremental path and fall back to a full
// rebuild when it is unsafe. With nothing dirty it returns the last result.
//
// A Parse requested while another is running is queued and executed right
// after it; it never starts a nested parse.
func (d *Document) Parse() ParseResult {
	return d.guard(d.parseOnce)
}

// ParseFull rebuilds the whole tree regardless of what is dirty.
func (d *Document) ParseFull() ParseResult {
	return d.guard(func() ParseResult { return d.parseFull(ReasonForced) })
}

func (d *Document) guard(fn func() ParseResult) ParseResult {
	if d.parsing {
		d.queued = true
		return d.last
	}
	d.parsing = true
	defer func() { d.parsing = false }()

	res := fn()
	for d.queued {
		d.queued = false
		res = d.parseOnce()
	}
	return res
}

func (d *Document) parseOnce() ParseResult {
	if !d.parsed {
		return d.parseFull(ReasonInitial)
	}
	if d.dirty.Len() == 0 {
		return d.last
	}
	res, reason, ok := d.parseIncremental()
	if !ok {
		return d.parseFull(reason)
	}
	return res
}

func (d *Document) parseFull(reason string) ParseResult {
	start := d.clock.Now()
	n := len(d.lines)

	d.meta = parser.ScanMetadata(d.lines, d.metadataLines)
	root := outline.NewRoot(d.meta.Title(), n)
	if len(d.meta.Tags) > 0 {
		root.Attributes["tags"] = d.meta.Tags
	}
	if len(d.meta.Articles) > 1 {
		root.Attributes["aliases"] = d.meta.Articles[1:]
	}

	fences := make([]string, n)
	var tr outline.CodeBlockTracker
	d.scan(outline.NewBuilder(root), &tr, d.meta.BodyStart, n, fences[d.meta.BodyStart-1:])
	root.EndLine = n

	d.root = root
	d.sums = checksum.Lines(d.lines)
	d.fences = fences
	d.parsed = true
	return d.commit(start, true, 0, reason)
}

// scan feeds lines [from, to] through the builder. states receives the
// tracker marker after each line, indexed from line from.
func (d *Document) scan(b *outline.Builder, tr *outline.CodeBlockTracker, from, to int, states []string) {
	for n := from; n <= to; n++ {
		line := d.lines[n-1]
		inCode := tr.Update(line)
		states[n-from] = tr.Marker()
		b.UpdateCurrentEnd(n)
		if inCode {
			continue
		}
		if typ, level := outline.Classify(line, false); typ.Structural() {
			b.AddSection(d.newSection(typ, level, n, line))
			continue
		}
		if tl, ok := d.attrs.ParseTask(line); ok {
			owner := b.Current()
			owner.Tasks = append(owner.Tasks, &outline.Task{
				Line:       n,
				Text:       tl.Text,
				Raw:        line,
				Completed:  tl.Completed,
				Attributes: tl.Attributes,
			})
		}
	}
}

func (d *Document) newSection(typ outline.SectionType, level, line int, raw string) *outline.Section {
	s := &outline.Section{
		Type:      typ,
		Level:     level,
		Raw:       raw,
		StartLine: line,
		EndLine:   line,
	}
	text := outline.SectionText(typ, raw)
	if typ == outline.Tag {
		s.Text = text
		s.Attributes = map[string]any{"tags": parser.Tags(raw)}
		return s
	}
	s.Text, s.Attributes = d.attrs.ParseAttributes(text)
	return s
}

// commit finishes a parse: indices, stats, version, dirty ranges.
func (d *Document) commit(start time.Time, full bool, ranges int, reason string) ParseResult {
	d.rebuildIndices()
	d.version++
	d.dirty.Clear()

	res := ParseResult{
		Full:     full,
		Version:  d.version,
		Duration: clock.Since(d.clock, start),
		Ranges:   ranges,
		Reason:   reason,
	}
	d.last = res

	if d.budget > 0 && res.Duration > d.budget {
		d.logger.Warn("document: parse over budget",
			slog.Bool("full", full),
			slog.Int("lines", len(d.lines)),
			slog.Duration("duration", res.Duration),
			slog.Duration("budget", d.budget))
	} else {
		d.logger.Debug("document: parsed",
			slog.Bool("full", full),
			slog.String("reason", reason),
			slog.Int64("version", d.version),
			slog.Duration("duration", res.Duration))
	}

	if d.observer != nil {
		d.observer(d, res)
	}
	return res
}

// rebuildIndices recomputes ids, the line and id indices, the task list
// and the stats with one walk of the tree.
func (d *Document) rebuildIndices() {
	d.byLine = make([]*outline.Section, len(d.lines))
	d.byID = make(map[string]*outline.Section)
	d.taskByID = make(map[string]taskRef)
	d.tasks = d.tasks[:0]
	d.stats = Stats{}

	var visit func(s *outline.Section, path string)
	visit = func(s *outline.Section, path string) {
		if !s.IsRoot() {
			if path == "" {
				path = strings.ToLower(s.Text)
			} else {
				path += "/" + strings.ToLower(s.Text)
			}
			s.ID = path
			if _, dup := d.byID[path]; !dup {
				d.byID[path] = s
			}
			d.stats.Sections++
		}

		// Children are visited after the parent, so deeper sections
		// overwrite their ancestors.
		for l := max(s.StartLine, 1); l <= min(s.EndLine, len(d.byLine)); l++ {
			d.byLine[l-1] = s
		}

		for _, t := range s.Tasks {
			t.ID = taskID(s, t)
			if _, dup := d.taskByID[t.ID]; !dup {
				d.taskByID[t.ID] = taskRef{task: t, section: s}
			}
			d.tasks = append(d.tasks, t)
			d.stats.Tasks++
			if t.Completed {
				d.stats.Completed++
			}
		}
		for _, c := range s.Children {
			visit(c, path)
		}
	}
	visit(d.root, "")

	sort.SliceStable(d.tasks, func(i, j int) bool { return d.tasks[i].Line < d.tasks[j].Line })
}

func taskID(owner *outline.Section, t *outline.Task) string {
	if id, ok := t.Attributes["id"].(string); ok && id != "" {
		return id
	}
	return owner.ID + "#" + strings.ToLower(t.Text)
}
