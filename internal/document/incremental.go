package document

import (
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/checksum"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
)

// parseIncremental rebuilds only the regions touched by the dirty ranges.
// When it cannot guarantee the same tree a full parse would produce it
// returns false with the reason; the tree may then be half-updated and the
// caller must run a full parse.
//
// Ranges are processed in ascending order. Their starts are in final line
// numbers, and because every processed range shifts the rest of the tree by
// its delta, the tree ahead of the next range is in final numbering too.
func (d *Document) parseIncremental() (ParseResult, string, bool) {
	start := d.clock.Now()
	n := len(d.lines)

	if d.dirty.ExceedsThreshold(n) {
		return ParseResult{}, ReasonThreshold, false
	}
	ranges := d.dirty.Merge()
	for _, r := range ranges {
		if r.Start <= d.meta.BodyStart {
			return ParseResult{}, ReasonMetadata, false
		}
	}

	for i := 0; i < len(ranges); {
		r := ranges[i]
		i++
		if r.Delta == 0 && d.unchanged(r.Start, min(r.End, n)) {
			continue
		}

		delta := r.Delta
		oldEnd := max(r.OldEnd(), r.Start-1)
		p, rs, reOld := d.region(r.Start, oldEnd)
		// Ranges whose regions touch are spliced as one.
		for i < len(ranges) && ranges[i].Start <= reOld+delta+1 {
			next := ranges[i]
			oldEnd = max(oldEnd, next.OldEnd()-delta)
			delta += next.Delta
			i++
			p, rs, reOld = d.region(r.Start, oldEnd)
		}

		if reason, ok := d.splice(p, rs, reOld, delta); !ok {
			return ParseResult{}, reason, false
		}
	}

	if d.root.EndLine != n || len(d.sums) != n {
		return ParseResult{}, ReasonDrift, false
	}
	return d.commit(start, false, len(ranges), ""), "", true
}

// unchanged reports whether lines [from, to] still match their checksums.
func (d *Document) unchanged(from, to int) bool {
	if from < 1 || to > len(d.sums) {
		return false
	}
	for l := from; l <= to; l++ {
		if d.sums[l-1] != checksum.Line(d.lines[l-1]) {
			return false
		}
	}
	return true
}

// region picks the reparse root for an edit that turned pre-edit lines
// [s, oldEnd] into new content starting at s, and the pre-edit line span
// [rs, reOld] of it that has to be rebuilt.
//
// The edit is widened by one line on each side. The reparse root is the
// deepest section whose header lies before the widened edit and whose
// range covers it. The span grows to whole children of the reparse root
// and then up to the line before its next untouched child.
func (d *Document) region(s, oldEnd int) (*outline.Section, int, int) {
	lo := max(1, s-1)
	hi := max(lo, min(d.root.EndLine, oldEnd+1))

	p := d.root
	for descended := true; descended; {
		descended = false
		for _, c := range p.Children {
			if c.StartLine < lo && c.EndLine >= hi {
				p, descended = c, true
				break
			}
		}
	}

	rs, reOld := lo, hi
	for _, c := range p.Children {
		if c.StartLine <= hi && c.EndLine >= lo {
			rs = min(rs, c.StartLine)
			reOld = max(reOld, c.EndLine)
		}
	}
	end := p.EndLine
	if next := childAfter(p, reOld); next != nil {
		end = next.StartLine - 1
	}
	return p, rs, max(end, reOld)
}

// splice replaces the children and tasks of p in pre-edit lines
// [rs, reOld] with a fresh scan of lines [rs, reOld+delta].
func (d *Document) splice(p *outline.Section, rs, reOld, delta int) (string, bool) {
	newEnd := reOld + delta
	if rs < 1 || newEnd < rs-1 || newEnd > len(d.lines) || reOld > len(d.sums) {
		return ReasonDrift, false
	}
	oldState := ""
	if reOld >= 1 {
		oldState = d.fences[reOld-1]
	}

	p.RemoveChildren(func(c *outline.Section) bool { return c.StartLine >= rs && c.StartLine <= reOld })
	p.RemoveTasks(func(t *outline.Task) bool { return t.Line >= rs && t.Line <= reOld })
	if delta != 0 {
		shift(d.root, rs, reOld, delta)
	}

	var tr outline.CodeBlockTracker
	for l := d.meta.BodyStart; l < rs; l++ {
		tr.Update(d.lines[l-1])
	}
	b := outline.NewScopedBuilder(p)
	states := make([]string, newEnd-rs+1)
	d.scan(b, &tr, rs, newEnd, states)
	p.SortChildren()

	// A different fence state after the region would reclassify
	// everything below it.
	if tr.Marker() != oldState {
		return ReasonFence, false
	}
	if b.Escaped() {
		return ReasonEscape, false
	}
	if next := childAfter(p, newEnd); next != nil {
		for _, o := range b.Open() {
			if outline.CanContain(o, next) {
				return ReasonSwallow, false
			}
		}
	}

	d.sums = replaceSpan(d.sums, rs, reOld, checksum.Lines(d.lines[rs-1:newEnd]))
	d.fences = replaceSpan(d.fences, rs, reOld, states)
	return "", true
}

// shift moves everything after pre-edit line reOld by delta. Sections that
// start at or before reOld and end at or after it only have their end moved.
func shift(root *outline.Section, rs, reOld, delta int) {
	outline.Walk(root, func(s *outline.Section) bool {
		if s.EndLine < rs {
			return false
		}
		switch {
		case s.StartLine > reOld:
			s.StartLine += delta
			s.EndLine += delta
		case s.EndLine >= reOld:
			s.EndLine += delta
		}
		for _, t := range s.Tasks {
			if t.Line > reOld {
				t.Line += delta
			}
		}
		return true
	})
}

func childAfter(p *outline.Section, line int) *outline.Section {
	for _, c := range p.Children {
		if c.StartLine > line {
			return c
		}
	}
	return nil
}

// replaceSpan replaces the 1-based lines [from, to] of s with repl.
func replaceSpan[T any](s []T, from, to int, repl []T) []T {
	out := make([]T, 0, len(s)-(to-from+1)+len(repl))
	out = append(out, s[:from-1]...)
	out = append(out, repl...)
	return append(out, s[to:]...)
}
