package parser

import (
	"regexp"
	"strings"
)

var taskRe = regexp.MustCompile(`^\s*[-*+]\s+\[([ xX~-])\]\s*(.*)$`)

// TaskLine is a checklist line broken into its parts.
type TaskLine struct {
	Text       string
	Completed  bool
	Attributes map[string]any
}

var markStatus = map[string]string{
	" ": "todo",
	"x": "done",
	"X": "done",
	"~": "in_progress",
	"-": "cancelled",
}

// ParseTask matches a checkbox line and parses its inline attributes. An
// explicit @status wins over the one implied by the checkbox mark.
func (r *Registry) ParseTask(line string) (TaskLine, bool) {
	m := taskRe.FindStringSubmatch(line)
	if m == nil {
		return TaskLine{}, false
	}
	text, attrs := r.ParseAttributes(m[2])
	if _, ok := attrs["status"]; !ok {
		attrs["status"] = markStatus[m[1]]
	}
	return TaskLine{
		Text:       text,
		Completed:  strings.EqualFold(m[1], "x"),
		Attributes: attrs,
	}, true
}

// ParseTask parses line with the Default registry.
func ParseTask(line string) (TaskLine, bool) {
	return Default.ParseTask(line)
}
