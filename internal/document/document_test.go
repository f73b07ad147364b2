package document

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
)

var quiet = slog.New(slog.DiscardHandler)

var sampleLines = []string{
	"@@Project X",                      // 1
	"@work",                            // 2
	"",                                 // 3
	"# Tasks",                          // 4
	"- [ ] write spec @p1",             // 5
	"- [x] draft outline",              // 6
	"## Backlog",                       // 7
	"- [ ] later",                      // 8
	"Notes:",                           // 9
	"some text",                        // 10
	"# Reference",                      // 11
	"```",                              // 12
	"# not heading",                    // 13
	"```",                              // 14
	"**Links**:",                       // 15
	"- [ ] read docs @due(2026-02-01)", // 16
}

func parsed(t *testing.T, lines []string, opts ...Option) *Document {
	t.Helper()
	d := New(lines, append([]Option{WithLogger(quiet)}, opts...)...)
	if res := d.Parse(); !res.Full {
		t.Fatalf("first parse should be full: %+v", res)
	}
	return d
}

// sameTree fails when got's outline differs from a fresh full parse of
// got's current lines.
func sameTree(t *testing.T, got *Document) {
	t.Helper()
	want := parsed(t, got.Lines())
	opts := []cmp.Option{cmpopts.IgnoreUnexported(outline.Section{}), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(want.Root(), got.Root(), opts...); diff != "" {
		t.Fatalf("tree mismatch (-full +incremental):\n%s", diff)
	}
	if got.Stats() != want.Stats() {
		t.Errorf("stats = %+v, want %+v", got.Stats(), want.Stats())
	}
	if diff := cmp.Diff(want.Tasks(), got.Tasks()); diff != "" {
		t.Errorf("tasks mismatch:\n%s", diff)
	}
	checkInvariants(t, got)
}

// checkInvariants verifies containment, sibling order and the line index.
func checkInvariants(t *testing.T, d *Document) {
	t.Helper()
	outline.Walk(d.Root(), func(s *outline.Section) bool {
		prevEnd := 0
		for _, c := range s.Children {
			if c.StartLine < s.StartLine || c.EndLine > s.EndLine {
				t.Errorf("%q %d-%d escapes parent %q %d-%d", c.Text, c.StartLine, c.EndLine, s.Text, s.StartLine, s.EndLine)
			}
			if c.StartLine <= prevEnd {
				t.Errorf("%q starts at %d inside previous sibling ending %d", c.Text, c.StartLine, prevEnd)
			}
			if c.Parent() != s {
				t.Errorf("%q has wrong parent", c.Text)
			}
			prevEnd = c.EndLine
		}
		return true
	})

	for l := 1; l <= d.LineCount(); l++ {
		s := d.SectionAtLine(l)
		if s == nil || !s.Contains(l) {
			t.Fatalf("line %d: section %v does not contain it", l, s)
		}
		for _, c := range s.Children {
			if c.Contains(l) {
				t.Errorf("line %d: child %q is deeper than %q", l, c.Text, s.Text)
			}
		}
		for p := s.Parent(); p != nil; p = p.Parent() {
			if !p.Contains(l) {
				t.Errorf("line %d: ancestor %q does not contain it", l, p.Text)
			}
		}
	}
}

func TestParse_HeadingOwnsTasks(t *testing.T) {
	d := parsed(t, []string{"@@Project X", "", "# Tasks", "- [ ] write spec", "- [x] draft outline"})

	root := d.Root()
	if root.Type != outline.Article || root.Text != "Project X" {
		t.Errorf("root = %v %q", root.Type, root.Text)
	}
	if len(root.Children) != 1 {
		t.Fatalf("root children = %d, want 1", len(root.Children))
	}
	h := root.Children[0]
	if h.Type != outline.Heading || h.Level != 1 || h.Text != "Tasks" || h.StartLine != 3 || h.EndLine != 5 {
		t.Errorf("heading = %+v", h)
	}
	if len(h.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(h.Tasks))
	}
	if h.Tasks[0].Completed || !h.Tasks[1].Completed {
		t.Errorf("completed flags = %v %v, want false true", h.Tasks[0].Completed, h.Tasks[1].Completed)
	}
	if d.Stats() != (Stats{Sections: 1, Tasks: 2, Completed: 1}) {
		t.Errorf("stats = %+v", d.Stats())
	}
	if d.Version() != 1 {
		t.Errorf("version = %d, want 1", d.Version())
	}
	checkInvariants(t, d)
}

func TestParse_InsertTaskIncremental(t *testing.T) {
	d := parsed(t, []string{"@@Project X", "", "# Tasks", "- [ ] write spec", "- [x] draft outline"})

	if err := d.InsertLines(4, []string{"- [ ] new task"}); err != nil {
		t.Fatal(err)
	}
	dirty := d.Dirty()
	want := DirtyRange{Start: 4, End: 4, Type: Insert, Delta: 1, Seq: 1}
	if len(dirty) != 1 || dirty[0] != want {
		t.Fatalf("dirty = %+v, want [%+v]", dirty, want)
	}

	res := d.Parse()
	if res.Full {
		t.Fatalf("expected incremental parse, got %+v", res)
	}
	if d.LineCount() != 6 || d.Root().Children[0].EndLine != 6 {
		t.Errorf("heading end = %d, want 6", d.Root().Children[0].EndLine)
	}
	if got := len(d.Root().Children[0].Tasks); got != 3 {
		t.Errorf("tasks = %d, want 3", got)
	}
	sameTree(t, d)
}

func TestParse_IncrementalMatchesFull(t *testing.T) {
	cases := []struct {
		name   string
		edit   func(d *Document) error
		full   bool
		reason string
	}{
		{
			name: "modify task",
			edit: func(d *Document) error { return d.UpdateLine(6, "- [ ] draft outline") },
		},
		{
			name: "insert nested heading",
			edit: func(d *Document) error { return d.InsertLines(9, []string{"### Sub"}) },
		},
		{
			name: "delete heading",
			edit: func(d *Document) error { return d.DeleteLines(7, 7) },
		},
		{
			name: "edit inside code block",
			edit: func(d *Document) error { return d.UpdateLine(13, "# still not heading") },
		},
		{
			name: "rename top-level heading",
			edit: func(d *Document) error { return d.UpdateLine(11, "# References") },
		},
		{
			name: "two distant edits",
			edit: func(d *Document) error {
				if err := d.UpdateLine(5, "- [ ] write the spec @p2"); err != nil {
					return err
				}
				return d.UpdateLine(16, "- [x] read docs")
			},
		},
		{
			name: "replace with more lines",
			edit: func(d *Document) error {
				return d.ReplaceLines(8, 8, []string{"- [ ] later", "- [ ] much later", "Ideas:"})
			},
		},
		{
			name:   "remove closing fence",
			edit:   func(d *Document) error { return d.UpdateLine(14, "text") },
			full:   true,
			reason: ReasonFence,
		},
		{
			name:   "promote heading",
			edit:   func(d *Document) error { return d.UpdateLine(7, "# Backlog") },
			full:   true,
			reason: ReasonEscape,
		},
		{
			name:   "metadata overlap",
			edit:   func(d *Document) error { return d.UpdateLine(2, "@home") },
			full:   true,
			reason: ReasonMetadata,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := parsed(t, sampleLines)
			if err := tc.edit(d); err != nil {
				t.Fatal(err)
			}
			res := d.Parse()
			if res.Full != tc.full {
				t.Errorf("full = %v (reason %q), want %v", res.Full, res.Reason, tc.full)
			}
			if tc.reason != "" && res.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", res.Reason, tc.reason)
			}
			if res.Version != 2 {
				t.Errorf("version = %d, want 2", res.Version)
			}
			if len(d.Dirty()) != 0 {
				t.Errorf("dirty ranges left after parse: %+v", d.Dirty())
			}
			sameTree(t, d)
		})
	}
}

func TestParse_SwallowFallsBack(t *testing.T) {
	d := parsed(t, []string{"### Deep", "text", "text", "## N"})
	if err := d.UpdateLine(2, "# Big"); err != nil {
		t.Fatal(err)
	}
	res := d.Parse()
	if !res.Full || res.Reason != ReasonSwallow {
		t.Errorf("result = %+v, want full parse for swallow", res)
	}
	big := d.SectionByID("big")
	if big == nil || len(big.Children) != 1 || big.Children[0].Text != "N" {
		t.Errorf("# Big should contain ## N")
	}
	sameTree(t, d)
}

func TestParse_NoAncestorUsesRoot(t *testing.T) {
	d := parsed(t, sampleLines)
	p, rs, reOld := d.region(11, 11)
	if !p.IsRoot() {
		t.Errorf("reparse root = %q, want document root", p.Text)
	}
	if rs != 4 || reOld != 16 {
		t.Errorf("region = %d-%d, want 4-16", rs, reOld)
	}
	p, _, _ = d.region(9, 9)
	if p.Text != "Backlog" {
		t.Errorf("reparse root = %q, want Backlog", p.Text)
	}
}

func TestParse_ThresholdFallback(t *testing.T) {
	d := parsed(t, sampleLines, WithThresholds(100, 1))
	_ = d.UpdateLine(5, "- [ ] a")
	_ = d.UpdateLine(16, "- [ ] b")
	res := d.Parse()
	if !res.Full || res.Reason != ReasonThreshold {
		t.Errorf("result = %+v, want threshold full parse", res)
	}
	sameTree(t, d)
}

func TestParse_WholeDocumentRangeIsFull(t *testing.T) {
	d := parsed(t, sampleLines)
	if err := d.ReplaceLines(1, len(sampleLines), []string{"# Only"}); err != nil {
		t.Fatal(err)
	}
	res := d.Parse()
	if !res.Full || res.Reason != ReasonThreshold {
		t.Errorf("result = %+v, want full parse", res)
	}
	if d.Stats().Sections != 1 {
		t.Errorf("sections = %d, want 1", d.Stats().Sections)
	}

	d.SetLines(sampleLines)
	if res := d.Parse(); !res.Full {
		t.Errorf("SetLines should force a full parse")
	}
	sameTree(t, d)
}

func TestParse_Idempotent(t *testing.T) {
	d := parsed(t, sampleLines)
	before := d.Root()
	res := d.ParseFull()
	if res.Version != 2 || res.Reason != ReasonForced {
		t.Errorf("result = %+v", res)
	}
	opts := []cmp.Option{cmpopts.IgnoreUnexported(outline.Section{}), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(before, d.Root(), opts...); diff != "" {
		t.Errorf("reparse changed the tree:\n%s", diff)
	}

	// Nothing dirty: Parse is a no-op.
	if res := d.Parse(); res.Version != 2 {
		t.Errorf("version = %d after no-op parse, want 2", res.Version)
	}
	if d.NeedsParse() {
		t.Error("NeedsParse should be false")
	}
}

func TestParse_UnchangedEditIsSkipped(t *testing.T) {
	d := parsed(t, sampleLines)
	_ = d.UpdateLine(10, "some text")
	if !d.NeedsParse() {
		t.Fatal("NeedsParse should report the recorded edit")
	}
	res := d.Parse()
	if res.Full || res.Version != 2 {
		t.Errorf("result = %+v", res)
	}
	sameTree(t, d)
}

func TestQueries(t *testing.T) {
	d := parsed(t, sampleLines)

	if s := d.SectionAtLine(2); !s.IsRoot() {
		t.Errorf("metadata line should map to root, got %q", s.Text)
	}
	if s := d.SectionAtLine(10); s.Text != "Notes" {
		t.Errorf("line 10 = %q, want Notes", s.Text)
	}
	if s := d.SectionAtLine(13); s.Text != "Reference" {
		t.Errorf("code line = %q, want Reference", s.Text)
	}
	if d.SectionAtLine(0) != nil || d.SectionAtLine(17) != nil {
		t.Error("out-of-range lines should return nil")
	}

	if s := d.SectionByID("tasks/backlog/notes"); s == nil || s.StartLine != 9 {
		t.Errorf("SectionByID = %+v", s)
	}
	if s := d.SectionByID("reference/links"); s == nil || s.Type != outline.BoldHeading {
		t.Errorf("bold heading id lookup failed")
	}

	task, sec, ok := d.Task("tasks#write spec")
	if !ok || task.Line != 5 || sec.Text != "Tasks" {
		t.Fatalf("Task = %+v %v %v", task, sec, ok)
	}
	if task.Attributes["p"] != 1 {
		t.Errorf("priority = %v", task.Attributes["p"])
	}
	if _, _, ok := d.Task("missing"); ok {
		t.Error("missing task found")
	}

	tasks := d.Tasks()
	if len(tasks) != 4 || tasks[0].Line != 5 || tasks[3].Line != 16 {
		t.Errorf("tasks out of order")
	}
	if d.Stats() != (Stats{Sections: 5, Tasks: 4, Completed: 1}) {
		t.Errorf("stats = %+v", d.Stats())
	}
	if tags, _ := d.Root().Attributes["tags"].([]string); len(tags) != 1 || tags[0] != "work" {
		t.Errorf("root tags = %v", d.Root().Attributes["tags"])
	}
	checkInvariants(t, d)
}

func TestTask_ExplicitID(t *testing.T) {
	d := parsed(t, []string{"# A", "- [ ] ship @id(release-1)"})
	if _, sec, ok := d.Task("release-1"); !ok || sec.Text != "A" {
		t.Errorf("explicit task id not indexed")
	}
}

func TestSectionByID_FirstDuplicateWins(t *testing.T) {
	d := parsed(t, []string{"# Same", "one", "# Same", "two"})
	if s := d.SectionByID("same"); s == nil || s.StartLine != 1 {
		t.Errorf("SectionByID = %+v, want the first", s)
	}
}

func TestReentrantParseIsQueued(t *testing.T) {
	calls := 0
	d := New([]string{"# A", "text"}, WithLogger(quiet), WithObserver(func(doc *Document, res ParseResult) {
		calls++
		if calls == 1 {
			_ = doc.UpdateLine(2, "## B")
			if nested := doc.Parse(); nested.Version != res.Version {
				t.Errorf("nested parse ran immediately: %+v", nested)
			}
		}
	}))

	res := d.Parse()
	if calls != 2 {
		t.Fatalf("observer calls = %d, want 2", calls)
	}
	if res.Version != 2 || d.Version() != 2 {
		t.Errorf("version = %d, want 2", d.Version())
	}
	if d.SectionByID("a/b") == nil {
		t.Error("queued parse did not pick up the nested edit")
	}
}

func TestApplyEdits_SkipsFailures(t *testing.T) {
	d := parsed(t, []string{"# A", "text"})
	err := d.ApplyEdits([]Edit{
		{Op: OpUpdate, Start: 2, Lines: []string{"- [ ] one"}},
		{Op: OpDelete, Start: 40},
		{Op: OpInsert, Start: 3, Lines: []string{"- [ ] two"}},
		{Op: "bogus"},
	})
	if !errors.Is(err, apperr.ErrOutOfRange) {
		t.Errorf("err = %v, want out of range", err)
	}
	if d.LineCount() != 3 {
		t.Errorf("line count = %d, want 3", d.LineCount())
	}
	d.Parse()
	if d.Stats().Tasks != 2 {
		t.Errorf("tasks = %d, want 2", d.Stats().Tasks)
	}
	sameTree(t, d)
}

func TestMutators_OutOfRange(t *testing.T) {
	d := New([]string{"a"}, WithLogger(quiet))
	for name, err := range map[string]error{
		"update":  d.UpdateLine(2, "x"),
		"insert":  d.InsertLines(3, []string{"x"}),
		"delete":  d.DeleteLines(1, 2),
		"replace": d.ReplaceLines(0, 1, []string{"x"}),
	} {
		if !errors.Is(err, apperr.ErrOutOfRange) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if len(d.Dirty()) != 0 {
		t.Error("failed edits must not record dirty ranges")
	}
}
