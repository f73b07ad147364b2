// Package outline holds the structural model of a zortex document: section
// and task types, the fence tracker, the line classifier and the stack-based
// tree builder.
package outline

import "sort"

// SectionType identifies what kind of line opened a section.
type SectionType int

const (
	Text SectionType = iota
	Article
	Heading
	BoldHeading
	Label
	Tag
)

var sectionTypeNames = map[SectionType]string{
	Text:        "text",
	Article:     "article",
	Heading:     "heading",
	BoldHeading: "bold_heading",
	Label:       "label",
	Tag:         "tag",
}

func (t SectionType) String() string {
	if s, ok := sectionTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Structural reports whether lines of this type open a section.
func (t SectionType) Structural() bool {
	return t != Text
}

// Section is one node of the outline tree. A parent exclusively owns its
// Children; the parent reference held by a child is never followed by
// traversal, copying or serialisation.
type Section struct {
	ID         string
	Type       SectionType
	Level      int
	Text       string
	Raw        string
	StartLine  int
	EndLine    int
	Attributes map[string]any
	Tasks      []*Task
	Children   []*Section

	parent *Section
	root   bool
}

// Task is a checklist line owned by the section it appears in.
type Task struct {
	ID         string
	Line       int
	Text       string
	Raw        string
	Completed  bool
	Attributes map[string]any
}

// NewRoot returns the synthetic article spanning the whole document.
func NewRoot(text string, lineCount int) *Section {
	return &Section{
		Type:       Article,
		Text:       text,
		StartLine:  1,
		EndLine:    lineCount,
		Attributes: map[string]any{},
		root:       true,
	}
}

// Parent returns the enclosing section, or nil for the root.
func (s *Section) Parent() *Section { return s.parent }

// IsRoot reports whether s is the synthetic document root.
func (s *Section) IsRoot() bool { return s.root }

// Contains reports whether line lies within the section's range.
func (s *Section) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// AppendChild attaches c as the last child of s.
func (s *Section) AppendChild(c *Section) {
	c.parent = s
	s.Children = append(s.Children, c)
}

// RemoveChildren drops every direct child for which drop returns true.
func (s *Section) RemoveChildren(drop func(*Section) bool) {
	kept := s.Children[:0]
	for _, c := range s.Children {
		if drop(c) {
			c.parent = nil
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(s.Children); i++ {
		s.Children[i] = nil
	}
	s.Children = kept
}

// RemoveTasks drops every directly owned task for which drop returns true.
func (s *Section) RemoveTasks(drop func(*Task) bool) {
	kept := s.Tasks[:0]
	for _, t := range s.Tasks {
		if !drop(t) {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(s.Tasks); i++ {
		s.Tasks[i] = nil
	}
	s.Tasks = kept
}

// SortChildren orders children and tasks by line number.
func (s *Section) SortChildren() {
	sort.SliceStable(s.Children, func(i, j int) bool {
		return s.Children[i].StartLine < s.Children[j].StartLine
	})
	sort.SliceStable(s.Tasks, func(i, j int) bool {
		return s.Tasks[i].Line < s.Tasks[j].Line
	})
}

// Walk visits root and its descendants in pre-order. Returning false from
// fn skips the visited section's subtree.
func Walk(root *Section, fn func(*Section) bool) {
	if root == nil || !fn(root) {
		return
	}
	for _, c := range root.Children {
		Walk(c, fn)
	}
}

// Rank orders section types for containment; a lower rank contains a
// higher one. Headings rank by level so that # contains ##.
func Rank(s *Section) int {
	switch s.Type {
	case Article:
		return 0
	case Heading:
		return s.Level
	case BoldHeading:
		return 7
	case Label:
		return 8
	default:
		return 9
	}
}

// CanContain reports whether container may be the parent of child. The
// document root contains everything; tags contain nothing.
func CanContain(container, child *Section) bool {
	if container.root {
		return true
	}
	return Rank(container) < Rank(child)
}
