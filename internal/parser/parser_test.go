package parser

import (
	"strings"
	"testing"
	"time"
)

func TestScanMetadata_ArticleAndTags(t *testing.T) {
	m := ScanMetadata(SplitLines([]byte("@@Project X\n@work @home\n\n# Tasks\n- [ ] write spec\n")), 0)
	if m.Title() != "Project X" {
		t.Errorf("title = %q, want %q", m.Title(), "Project X")
	}
	if len(m.Tags) != 2 || m.Tags[0] != "work" || m.Tags[1] != "home" {
		t.Errorf("tags = %v, want [work home]", m.Tags)
	}
	if m.BodyStart != 4 {
		t.Errorf("body start = %d, want 4", m.BodyStart)
	}
}

func TestScanMetadata_NoDeclarations(t *testing.T) {
	m := ScanMetadata([]string{"some text", "# My Heading", "more"}, 0)
	if m.Title() != "" || len(m.Tags) != 0 {
		t.Errorf("metadata = %+v, want empty", m)
	}
	if m.BodyStart != 1 {
		t.Errorf("body start = %d, want 1", m.BodyStart)
	}
}

func TestScanMetadata_WindowExhausted(t *testing.T) {
	lines := []string{"@@A", "", "@t", "", "# later"}
	m := ScanMetadata(lines, 3)
	if m.BodyStart != 4 {
		t.Errorf("body start = %d, want 4", m.BodyStart)
	}
	if m.Title() != "A" {
		t.Errorf("title = %q", m.Title())
	}
}

func TestScanMetadata_DuplicateTags(t *testing.T) {
	m := ScanMetadata([]string{"@a @b", "@a"}, 0)
	if len(m.Tags) != 2 {
		t.Errorf("tags = %v, want [a b]", m.Tags)
	}
	if m.BodyStart != 3 {
		t.Errorf("body start = %d, want 3", m.BodyStart)
	}
}

func TestSplitLines(t *testing.T) {
	if got := SplitLines([]byte("a\r\nb\n")); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("SplitLines = %q", got)
	}
	if got := SplitLines(nil); len(got) != 0 {
		t.Errorf("empty input gave %q", got)
	}
	if got := SplitLines([]byte("a\n\n")); len(got) != 2 || got[1] != "" {
		t.Errorf("trailing blank line lost: %q", got)
	}
}

func TestJoinLines_RoundTrip(t *testing.T) {
	for _, lines := range [][]string{{"a"}, {"a", ""}, {"", "b", "c"}} {
		got := SplitLines(JoinLines(lines))
		if strings.Join(got, "|") != strings.Join(lines, "|") || len(got) != len(lines) {
			t.Errorf("round trip of %q gave %q", lines, got)
		}
	}
	if JoinLines(nil) != nil {
		t.Error("empty document should join to nothing")
	}
}

func TestParseAttributes(t *testing.T) {
	text, attrs := ParseAttributes("Ship it @p1 @due(2026-03-01) @dur(2h) @at(9:30) @urgent @team(core)")
	if text != "Ship it" {
		t.Errorf("text = %q, want %q", text, "Ship it")
	}
	if attrs["p"] != 1 {
		t.Errorf("p = %v, want 1", attrs["p"])
	}
	due, ok := attrs["due"].(time.Time)
	if !ok || due.Format(time.DateOnly) != "2026-03-01" {
		t.Errorf("due = %v", attrs["due"])
	}
	if attrs["dur"] != 2*time.Hour {
		t.Errorf("dur = %v", attrs["dur"])
	}
	if attrs["at"] != "09:30" {
		t.Errorf("at = %v", attrs["at"])
	}
	if attrs["urgent"] != true {
		t.Errorf("urgent = %v", attrs["urgent"])
	}
	if attrs["team"] != "core" {
		t.Errorf("team = %v", attrs["team"])
	}
	if _, bad := attrs[InvalidKey]; bad {
		t.Errorf("unexpected invalid list %v", attrs[InvalidKey])
	}
}

func TestParseAttributes_InvalidKeptRaw(t *testing.T) {
	_, attrs := ParseAttributes("x @due(tomorrow) @priority(9) @repeat(hourly)")
	if attrs["due"] != "tomorrow" {
		t.Errorf("due = %v, want raw value", attrs["due"])
	}
	bad, _ := attrs[InvalidKey].([]string)
	if len(bad) != 3 || bad[0] != "due" || bad[1] != "priority" || bad[2] != "repeat" {
		t.Errorf("invalid = %v", attrs[InvalidKey])
	}
}

func TestParseAttributes_EmailIsNotAttribute(t *testing.T) {
	text, attrs := ParseAttributes("mail me@example.com")
	if text != "mail me@example.com" || len(attrs) != 0 {
		t.Errorf("text=%q attrs=%v", text, attrs)
	}
}

func TestRegistry_Convert(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		key, raw string
		want     any
	}{
		{"priority", "high", 1},
		{"est", "1.5d", 36 * time.Hour},
		{"dur", "45", 45 * time.Minute},
		{"progress", "3/4", 0.75},
		{"progress", "50%", 0.5},
		{"repeat", "Weekly", "weekly"},
		{"unknown", " raw ", "raw"},
	}
	for _, tc := range cases {
		got, err := r.Convert(tc.key, tc.raw)
		if err != nil {
			t.Errorf("Convert(%q, %q): %v", tc.key, tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Convert(%q, %q) = %v, want %v", tc.key, tc.raw, got, tc.want)
		}
	}
	if _, err := r.Convert("progress", "5/4"); err == nil {
		t.Error("ratio above one should fail")
	}
}

func TestRegistry_Custom(t *testing.T) {
	r := NewRegistry()
	r.Register("billable", AttrSpec{Kind: KindBool})
	_, attrs := r.ParseAttributes("work @billable(false)")
	if attrs["billable"] != false {
		t.Errorf("billable = %v", attrs["billable"])
	}
}

func TestParseTask(t *testing.T) {
	cases := []struct {
		line      string
		text      string
		completed bool
		status    string
	}{
		{"- [ ] write spec", "write spec", false, "todo"},
		{"  * [x] draft outline", "draft outline", true, "done"},
		{"+ [X] shout", "shout", true, "done"},
		{"- [~] halfway", "halfway", false, "in_progress"},
		{"- [-] dropped", "dropped", false, "cancelled"},
		{"- [ ] explicit @status(done)", "explicit", false, "done"},
	}
	for _, tc := range cases {
		task, ok := ParseTask(tc.line)
		if !ok {
			t.Errorf("ParseTask(%q) did not match", tc.line)
			continue
		}
		if task.Text != tc.text || task.Completed != tc.completed || task.Attributes["status"] != tc.status {
			t.Errorf("ParseTask(%q) = %q %v %v", tc.line, task.Text, task.Completed, task.Attributes["status"])
		}
	}
	for _, line := range []string{"- not a task", "[ ] no bullet", "-[ ] no space"} {
		if _, ok := ParseTask(line); ok {
			t.Errorf("ParseTask(%q) matched", line)
		}
	}
}
