package cache

import (
	"time"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
)

// Kind tells buffer-bound documents from file-bound ones.
type Kind string

const (
	KindBuffer Kind = "buffer"
	KindFile   Kind = "file"
)

// EventType names a document lifecycle transition.
type EventType string

const (
	EventLoaded   EventType = "loaded"
	EventParsed   EventType = "parsed"
	EventSynced   EventType = "synced"
	EventEvicted  EventType = "evicted"
	EventUnloaded EventType = "unloaded"
)

// Event is pushed to every listener. Parse is set for parsed and synced
// events.
type Event struct {
	Type     EventType             `json:"type"`
	Kind     Kind                  `json:"kind"`
	Path     string                `json:"path"`
	BufferID string                `json:"buffer_id,omitempty"`
	Version  int64                 `json:"version"`
	Parse    *document.ParseResult `json:"parse,omitempty"`
	Time     time.Time             `json:"time"`
}

// Listener receives lifecycle events. A returned error or a panic is
// logged and does not affect the registry or other listeners.
type Listener func(Event) error
