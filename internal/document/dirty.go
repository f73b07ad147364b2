package document

import "sort"

// ChangeType classifies a recorded edit.
type ChangeType int

const (
	Insert ChangeType = iota
	Delete
	Modify
)

func (c ChangeType) String() string {
	switch c {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "modify"
	}
}

// DirtyRange is an edited line interval in current line numbers. Delta is
// the net change in line count, so the pre-edit extent of the range is
// [Start, End-Delta].
type DirtyRange struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Type  ChangeType `json:"type"`
	Delta int        `json:"delta"`
	Seq   int        `json:"seq"`
}

// OldEnd is the last pre-edit line covered by the range.
func (r DirtyRange) OldEnd() int { return r.End - r.Delta }

// Lines counts the current lines covered by the range.
func (r DirtyRange) Lines() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

const (
	DefaultMaxDirtyLines  = 200
	DefaultMaxDirtyRanges = 20
)

// DirtyTracker accumulates edited ranges between parses.
type DirtyTracker struct {
	MaxLines  int
	MaxRanges int

	ranges []DirtyRange
	seq    int
}

// NewDirtyTracker returns a tracker with the given thresholds. Values <= 0
// select the defaults.
func NewDirtyTracker(maxLines, maxRanges int) *DirtyTracker {
	if maxLines <= 0 {
		maxLines = DefaultMaxDirtyLines
	}
	if maxRanges <= 0 {
		maxRanges = DefaultMaxDirtyRanges
	}
	return &DirtyTracker{MaxLines: maxLines, MaxRanges: maxRanges}
}

// Record appends an edit. The lines [start, end-delta] before the edit
// became [start, end] after it. Ranges recorded earlier are moved through
// the edit so that all of them stay in current line numbers.
func (t *DirtyTracker) Record(start, end int, typ ChangeType, delta int) {
	if end < start {
		end = start
	}
	oldEnd := end - delta
	newLen := end - start + 1
	move := func(l int) int {
		switch {
		case l < start:
			return l
		case l > oldEnd:
			return l + delta
		default:
			return start + min(l-start, max(newLen-1, 0))
		}
	}
	for i := range t.ranges {
		r := &t.ranges[i]
		r.Start, r.End = move(r.Start), move(r.End)
		if r.End < r.Start {
			r.End = r.Start
		}
	}
	t.seq++
	t.ranges = append(t.ranges, DirtyRange{Start: start, End: end, Type: typ, Delta: delta, Seq: t.seq})
}

// Merge sorts the recorded ranges and folds together any that overlap or
// touch. The merged set replaces the recorded one and is returned.
func (t *DirtyTracker) Merge() []DirtyRange {
	if len(t.ranges) < 2 {
		return t.Ranges()
	}
	sort.SliceStable(t.ranges, func(i, j int) bool {
		return t.ranges[i].Start < t.ranges[j].Start
	})

	merged := []DirtyRange{t.ranges[0]}
	for _, next := range t.ranges[1:] {
		cur := &merged[len(merged)-1]
		if cur.End < next.Start-1 {
			merged = append(merged, next)
			continue
		}
		// next's pre-edit end is expressed after cur's delta was applied.
		oldEnd := max(cur.OldEnd(), next.OldEnd()-cur.Delta)
		delta := cur.Delta + next.Delta
		cur.End = max(cur.End, next.End, oldEnd+delta)
		cur.Delta = delta
		cur.Seq = min(cur.Seq, next.Seq)
		if cur.Type != next.Type {
			cur.Type = Modify
		}
	}
	t.ranges = merged
	return t.Ranges()
}

// ExceedsThreshold reports whether the merged ranges are too many, too
// large, or cover the whole document of lineCount lines.
func (t *DirtyTracker) ExceedsThreshold(lineCount int) bool {
	merged := t.Merge()
	if len(merged) > t.MaxRanges {
		return true
	}
	total := 0
	for _, r := range merged {
		if r.Start <= 1 && r.End >= lineCount {
			return true
		}
		total += r.Lines()
	}
	return total > t.MaxLines
}

// Ranges returns a copy of the recorded ranges.
func (t *DirtyTracker) Ranges() []DirtyRange {
	out := make([]DirtyRange, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// Len reports how many ranges are recorded.
func (t *DirtyTracker) Len() int { return len(t.ranges) }

// Clear forgets every recorded range.
func (t *DirtyTracker) Clear() { t.ranges = t.ranges[:0] }
