// Package models defines the domain views shared by the HTTP and MCP
// surfaces.
package models

import (
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/outline"
)

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentSummary is one row of the persisted document index.
type DocumentSummary struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Sections  int       `json:"sections"`
	Tasks     int       `json:"tasks"`
	Completed int       `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SectionView is the serialisable form of an outline section. Children is
// only filled for tree responses.
type SectionView struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Level      int            `json:"level,omitempty"`
	Text       string         `json:"text"`
	StartLine  int            `json:"start_line"`
	EndLine    int            `json:"end_line"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Tasks      []TaskView     `json:"tasks,omitempty"`
	Children   []SectionView  `json:"children,omitempty"`
}

// TaskView is the serialisable form of a checklist task.
type TaskView struct {
	ID         string         `json:"id"`
	Section    string         `json:"section,omitempty"`
	Line       int            `json:"line"`
	Text       string         `json:"text"`
	Completed  bool           `json:"completed"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// OutlineView is the whole outline of one document at one version.
type OutlineView struct {
	Path     string         `json:"path"`
	BufferID string         `json:"buffer_id,omitempty"`
	Version  int64          `json:"version"`
	Title    string         `json:"title"`
	Stats    document.Stats `json:"stats"`
	Root     SectionView    `json:"root"`
}

// SearchHit is one match from the section and task index.
type SearchHit struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"` // "section" or "task"
	ID      string `json:"id"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// NewSectionView converts s. With tree set the whole subtree is copied,
// otherwise only s and its own tasks.
func NewSectionView(s *outline.Section, tree bool) SectionView {
	v := SectionView{
		ID:         s.ID,
		Type:       s.Type.String(),
		Level:      s.Level,
		Text:       s.Text,
		StartLine:  s.StartLine,
		EndLine:    s.EndLine,
		Attributes: s.Attributes,
	}
	for _, t := range s.Tasks {
		v.Tasks = append(v.Tasks, NewTaskView(t, ""))
	}
	if tree {
		for _, c := range s.Children {
			v.Children = append(v.Children, NewSectionView(c, true))
		}
	}
	return v
}

// NewTaskView converts t, recording the owning section id when known.
func NewTaskView(t *outline.Task, section string) TaskView {
	return TaskView{
		ID:         t.ID,
		Section:    section,
		Line:       t.Line,
		Text:       t.Text,
		Completed:  t.Completed,
		Attributes: t.Attributes,
	}
}

// NewOutlineView snapshots the last parse of d.
func NewOutlineView(path, bufferID string, d *document.Document) OutlineView {
	root := d.Root()
	return OutlineView{
		Path:     path,
		BufferID: bufferID,
		Version:  d.Version(),
		Title:    root.Text,
		Stats:    d.Stats(),
		Root:     NewSectionView(root, true),
	}
}

// TaskViews lists every task of d with its owning section.
func TaskViews(d *document.Document) []TaskView {
	tasks := d.Tasks()
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		section := ""
		if _, s, ok := d.Task(t.ID); ok {
			section = s.ID
		}
		out = append(out, NewTaskView(t, section))
	}
	return out
}

// BufferView describes an open buffer. Version is that of the last parse;
// Pending is set while edits wait for the next one.
type BufferView struct {
	ID      string                `json:"id"`
	Path    string                `json:"path"`
	Version int64                 `json:"version"`
	Lines   int                   `json:"lines"`
	Pending bool                  `json:"pending"`
	Dirty   []document.DirtyRange `json:"dirty,omitempty"`
}

// NewBufferView snapshots d as seen by buffer id.
func NewBufferView(id, path string, d *document.Document) BufferView {
	return BufferView{
		ID:      id,
		Path:    path,
		Version: d.Version(),
		Lines:   d.LineCount(),
		Pending: d.NeedsParse(),
		Dirty:   d.Dirty(),
	}
}

// StatsView reports the counters and the last parse of one document.
type StatsView struct {
	Path      string               `json:"path"`
	Version   int64                `json:"version"`
	Stats     document.Stats       `json:"stats"`
	LastParse document.ParseResult `json:"last_parse"`
}
