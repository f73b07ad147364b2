package outline

// Builder assembles a classified line stream into a section tree. It keeps
// the active nesting path as a stack above a floor section; the floor is the
// document root for a full parse and the reparse root for an incremental one.
type Builder struct {
	floor   *Section
	stack   []*Section
	scoped  bool
	escaped bool
}

// NewBuilder returns a builder that attaches top-level sections to root.
func NewBuilder(root *Section) *Builder {
	return &Builder{floor: root}
}

// NewScopedBuilder returns a builder whose floor is an existing section in
// the middle of a tree. Sections the floor cannot contain are still attached
// to it, but Escaped reports that the result would differ from a full build.
func NewScopedBuilder(floor *Section) *Builder {
	return &Builder{floor: floor, scoped: true}
}

// AddSection pops every open section that cannot contain s, closing each at
// the line before s, then attaches s to the nearest remaining entry.
func (b *Builder) AddSection(s *Section) {
	for len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		if CanContain(top, s) {
			break
		}
		top.EndLine = s.StartLine - 1
		b.stack = b.stack[:len(b.stack)-1]
	}

	parent := b.floor
	if n := len(b.stack); n > 0 {
		parent = b.stack[n-1]
	} else if b.scoped && !CanContain(b.floor, s) {
		b.escaped = true
	}
	if s.EndLine < s.StartLine {
		s.EndLine = s.StartLine
	}
	parent.AppendChild(s)
	b.stack = append(b.stack, s)
}

// UpdateCurrentEnd extends the floor and every open section to line. Ends
// only grow, so a scoped builder never shrinks the floor it was seeded with.
func (b *Builder) UpdateCurrentEnd(line int) {
	if b.floor.EndLine < line {
		b.floor.EndLine = line
	}
	for _, s := range b.stack {
		if s.EndLine < line {
			s.EndLine = line
		}
	}
}

// Current returns the deepest open section, which owns any task found on
// the line being processed.
func (b *Builder) Current() *Section {
	if n := len(b.stack); n > 0 {
		return b.stack[n-1]
	}
	return b.floor
}

// Open returns a copy of the open sections above the floor, outermost first.
func (b *Builder) Open() []*Section {
	out := make([]*Section, len(b.stack))
	copy(out, b.stack)
	return out
}

// Escaped reports whether a scoped builder met a section its floor could
// not contain.
func (b *Builder) Escaped() bool { return b.escaped }
