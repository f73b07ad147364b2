package outline

import "testing"

func TestCodeBlockTracker(t *testing.T) {
	lines := []string{
		"text",      // 0 outside
		"```go",     // 1 opening delimiter
		"# not",     // 2 inside
		"~~~",       // 3 other char, content
		"```js",     // 4 info string, content
		"```",       // 5 closing delimiter
		"# heading", // 6 outside
		"~~~~",      // 7 opening
		"~~~",       // 8 shorter, content
		"~~~~~",     // 9 longer closes
		"after",     // 10 outside
	}
	want := []bool{false, false, true, true, true, false, false, false, true, false, false}

	var tr CodeBlockTracker
	for i, line := range lines {
		if got := tr.Update(line); got != want[i] {
			t.Errorf("line %d %q: inside = %v, want %v", i, line, got, want[i])
		}
	}
	if tr.Inside() {
		t.Error("tracker should end outside any block")
	}
}

func TestCodeBlockTracker_Reset(t *testing.T) {
	var tr CodeBlockTracker
	tr.Update("```")
	if !tr.Inside() {
		t.Fatal("expected inside after opening fence")
	}
	tr.Reset()
	if tr.Inside() {
		t.Error("Reset should leave the block")
	}
	if tr.Update("# x") {
		t.Error("line after reset reported inside")
	}
}

func TestIsFence(t *testing.T) {
	for line, want := range map[string]bool{
		"```":       true,
		"  ~~~":     true,
		"```python": true,
		"``":        false,
		"text ```":  false,
	} {
		if got := IsFence(line); got != want {
			t.Errorf("IsFence(%q) = %v, want %v", line, got, want)
		}
	}
}
