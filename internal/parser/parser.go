// Package parser extracts the metadata prefix, checklist tasks and inline
// attributes from zortex lines.
package parser

import (
	"bytes"
	"regexp"
	"strings"
)

// DefaultMetadataLines bounds the metadata scan at the top of a document.
const DefaultMetadataLines = 20

var tagRe = regexp.MustCompile(`(?:^|\s)@([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)

// Metadata is the declaration block at the top of a document.
type Metadata struct {
	Articles  []string
	Tags      []string
	BodyStart int // first line of the body, 1-based
}

// Title returns the first declared article name, or "".
func (m Metadata) Title() string {
	if len(m.Articles) == 0 {
		return ""
	}
	return m.Articles[0]
}

// SplitLines breaks content into lines without their terminators. A
// trailing newline does not produce an empty final line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	parts := strings.Split(string(data), "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

// JoinLines is the inverse of SplitLines: every line is terminated by a
// newline.
func JoinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// ScanMetadata reads at most limit leading lines. Blank lines and lines
// starting with @ are metadata; the first other line ends the block.
func ScanMetadata(lines []string, limit int) Metadata {
	if limit <= 0 {
		limit = DefaultMetadataLines
	}
	m := Metadata{}
	seen := make(map[string]struct{})
	n := min(limit, len(lines))

	for i := 0; i < n; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
		case strings.HasPrefix(line, "@@"):
			if name := strings.TrimSpace(strings.TrimLeft(line, "@")); name != "" {
				m.Articles = append(m.Articles, name)
			}
		case strings.HasPrefix(line, "@"):
			for _, tag := range Tags(line) {
				if _, dup := seen[tag]; !dup {
					seen[tag] = struct{}{}
					m.Tags = append(m.Tags, tag)
				}
			}
		default:
			m.BodyStart = i + 1
			return m
		}
	}
	m.BodyStart = n + 1
	return m
}

// Tags returns the @tags on a line in order of appearance.
func Tags(line string) []string {
	matches := tagRe.FindAllStringSubmatch(line, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
