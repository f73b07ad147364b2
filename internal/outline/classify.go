package outline

import (
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`^(#+)(?:\s+(.*))?$`)
	boldHeadingRe = regexp.MustCompile(`^\*\*([^*]+)\*\*:?$`)
	labelRe       = regexp.MustCompile(`^([\p{L}\p{N}][^:.!?]*):$`)
)

// Classify maps one line to a section type and, for headings, a level.
// It is total: every input yields a type, and anything inside a code
// block is Text.
func Classify(line string, inCodeBlock bool) (SectionType, int) {
	if inCodeBlock {
		return Text, 0
	}
	trimmed := strings.TrimRight(line, " \t\r")
	switch {
	case trimmed == "":
		return Text, 0
	case strings.HasPrefix(trimmed, "@@"):
		return Article, 0
	case isTagLine(trimmed):
		return Tag, 0
	}
	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		// "#" alone or a run longer than six is plain text.
		if n := len(m[1]); n <= 6 && n < len(trimmed) {
			return Heading, n
		}
		return Text, 0
	}
	if boldHeadingRe.MatchString(trimmed) {
		return BoldHeading, 0
	}
	if labelRe.MatchString(trimmed) {
		return Label, 0
	}
	return Text, 0
}

func isTagLine(s string) bool {
	return len(s) > 1 && s[0] == '@' && s[1] != '@' && s[1] != ' ' && s[1] != '\t'
}

// SectionText strips the structural markup from a classified line.
func SectionText(typ SectionType, line string) string {
	s := strings.TrimSpace(line)
	switch typ {
	case Article:
		return strings.TrimSpace(strings.TrimLeft(s, "@"))
	case Tag:
		return strings.TrimSpace(strings.TrimPrefix(s, "@"))
	case Heading:
		return strings.TrimSpace(strings.TrimLeft(s, "#"))
	case BoldHeading:
		s = strings.TrimSuffix(s, ":")
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "**"), "**"))
	case Label:
		return strings.TrimSpace(strings.TrimSuffix(s, ":"))
	}
	return s
}
