package outline

import "strings"

// CodeBlockTracker follows fenced code blocks line by line. It has no
// random access: to know the state at line N, replay every line from a
// known checkpoint up to N.
type CodeBlockTracker struct {
	inside bool
	marker string
}

// Update consumes one line and reports whether that line is inside a
// fenced block. Delimiter lines themselves are never inside.
func (t *CodeBlockTracker) Update(line string) bool {
	fence, ok := fenceOf(line)
	if !ok {
		return t.inside
	}
	if !t.inside {
		t.inside = true
		t.marker = fence
		return false
	}
	// A closing fence uses the same character, is at least as long and
	// carries no info string. Anything else is block content.
	if fence[0] != t.marker[0] || len(fence) < len(t.marker) || !bare(line, fence) {
		return true
	}
	t.inside = false
	t.marker = ""
	return false
}

// Inside reports whether the next line would start inside a block.
func (t *CodeBlockTracker) Inside() bool { return t.inside }

// Marker returns the delimiter of the open block, or "" outside one. Two
// trackers with equal markers classify every following line the same way.
func (t *CodeBlockTracker) Marker() string { return t.marker }

// Reset returns the tracker to the outside-any-block state.
func (t *CodeBlockTracker) Reset() {
	t.inside = false
	t.marker = ""
}

// IsFence reports whether line looks like a fence delimiter.
func IsFence(line string) bool {
	_, ok := fenceOf(line)
	return ok
}

// fenceOf returns the run of backticks or tildes that opens line, if it
// is at least three characters long.
func fenceOf(line string) (string, bool) {
	s := strings.TrimLeft(line, " \t")
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return "", false
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if n < 3 {
		return "", false
	}
	return s[:n], true
}

func bare(line, fence string) bool {
	rest := strings.TrimLeft(line, " \t")[len(fence):]
	return strings.TrimSpace(rest) == ""
}
