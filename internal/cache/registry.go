// Package cache keeps the documents of open buffers and recently used files
// in memory. Buffer-bound documents live until their buffer closes;
// file-bound ones sit in a bounded LRU. Every transition is pushed to
// subscribed listeners.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/clock"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/reparse"
)

// DefaultCapacity bounds the file-bound LRU when no capacity is set.
const DefaultCapacity = 32

// Loader reads the lines of a file on a cache miss.
type Loader interface {
	Load(ctx context.Context, path string) ([]string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) ([]string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) ([]string, error) { return f(ctx, path) }

// Registry owns every cached document.
type Registry struct {
	mu        sync.Mutex
	buffers   map[string]*Handle
	files     *lru.Cache[string, *Handle]
	dropped   []*Handle
	listeners map[int]Listener
	nextID    int
	closed    bool

	loads  singleflight.Group
	loader Loader

	capacity   int
	policy     reparse.Policy
	delay      time.Duration
	docOptions []document.Option
	clock      clock.Clock
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity bounds the file-bound LRU.
func WithCapacity(n int) Option {
	return func(r *Registry) { r.capacity = n }
}

// WithPolicy sets the reparse policy of buffer-bound documents.
func WithPolicy(p reparse.Policy, delay time.Duration) Option {
	return func(r *Registry) {
		r.policy = p
		r.delay = delay
	}
}

// WithDocumentOptions passes options to every document the registry creates.
func WithDocumentOptions(opts ...document.Option) Option {
	return func(r *Registry) { r.docOptions = append(r.docOptions, opts...) }
}

// WithClock sets the time source for schedulers and events.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New returns an empty registry that loads files through loader.
func New(loader Loader, opts ...Option) (*Registry, error) {
	r := &Registry{
		buffers:   map[string]*Handle{},
		listeners: map[int]Listener{},
		loader:    loader,
		capacity:  DefaultCapacity,
		policy:    reparse.Debounce,
		delay:     reparse.DefaultDelay,
		clock:     clock.Real(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.capacity <= 0 {
		r.capacity = DefaultCapacity
	}
	files, err := lru.NewWithEvict[string, *Handle](r.capacity, func(_ string, h *Handle) {
		// Runs inside Add/Remove with r.mu held; events go out later.
		r.dropped = append(r.dropped, h)
	})
	if err != nil {
		return nil, fmt.Errorf("cache: new lru: %w", err)
	}
	r.files = files
	return r, nil
}

// Subscribe registers l for every later event and returns a function that
// removes it.
func (r *Registry) Subscribe(l Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// OpenBuffer creates a buffer-bound document for path and parses it. A
// file-bound copy of the same path is dropped from the LRU.
func (r *Registry) OpenBuffer(path string, lines []string) (*Handle, error) {
	h := r.newHandle(KindBuffer, path, lines)
	h.id = uuid.NewString()
	h.sched = reparse.New(r.policy, r.delay, h.reparse,
		reparse.WithClock(r.clock), reparse.WithLogger(r.logger))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("cache: registry closed")
	}
	r.buffers[h.id] = h
	r.files.Remove(path)
	dropped := r.takeDropped()
	r.mu.Unlock()

	r.emitDropped(EventUnloaded, dropped)
	r.loaded(h)
	return h, nil
}

// Buffer returns the handle of an open buffer.
func (r *Registry) Buffer(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.buffers[id]
	return h, ok
}

// Buffers returns the open buffers ordered by path.
func (r *Registry) Buffers() []*Handle {
	r.mu.Lock()
	out := make([]*Handle, 0, len(r.buffers))
	for _, h := range r.buffers {
		out = append(out, h)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].path == out[j].path {
			return out[i].id < out[j].id
		}
		return out[i].path < out[j].path
	})
	return out
}

// CloseBuffer drops an open buffer.
func (r *Registry) CloseBuffer(id string) error {
	r.mu.Lock()
	h, ok := r.buffers[id]
	if ok {
		delete(r.buffers, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cache: buffer %s: %w", id, apperr.ErrNotFound)
	}
	h.stop()
	r.emit(Event{Type: EventUnloaded, Kind: h.kind, Path: h.path, BufferID: h.id, Version: h.version()})
	return nil
}

// GetFile returns a document for path. An open buffer for the path wins;
// otherwise the LRU is consulted and, on a miss, the file is loaded once
// no matter how many callers ask concurrently.
func (r *Registry) GetFile(ctx context.Context, path string) (*Handle, error) {
	r.mu.Lock()
	if h := r.bufferFor(path); h != nil {
		r.mu.Unlock()
		return h, nil
	}
	if h, ok := r.files.Get(path); ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	v, err, _ := r.loads.Do(path, func() (any, error) {
		lines, err := r.loader.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		h := r.newHandle(KindFile, path, lines)
		r.loaded(h)
		if err := r.Set(path, h); err != nil {
			return nil, err
		}
		return h, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: load %s: %w", path, err)
	}
	return v.(*Handle), nil
}

// Get returns a file-bound handle and marks it most recently used.
func (r *Registry) Get(path string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files.Get(path)
}

// Set stores a file-bound handle, evicting the least recently used entry
// when the LRU is full. A different handle already cached under path is
// unloaded. Listeners run after the LRU is updated.
func (r *Registry) Set(path string, h *Handle) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("cache: registry closed")
	}
	// Add on an existing key swaps the value without the evict callback.
	var replaced []*Handle
	if old, ok := r.files.Peek(path); ok && old != h {
		replaced = append(replaced, old)
	}
	r.files.Add(path, h)
	dropped := r.takeDropped()
	r.mu.Unlock()

	r.emitDropped(EventUnloaded, replaced)
	r.emitDropped(EventEvicted, dropped)
	return nil
}

// Invalidate drops the file-bound copy of path, if any. Open buffers are
// left alone.
func (r *Registry) Invalidate(path string) bool {
	r.mu.Lock()
	present := r.files.Remove(path)
	dropped := r.takeDropped()
	r.mu.Unlock()

	r.emitDropped(EventUnloaded, dropped)
	return present
}

// Files returns the cached file paths, least recently used first.
func (r *Registry) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files.Keys()
}

// Close stops every scheduler and unloads every document.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	buffers := make([]*Handle, 0, len(r.buffers))
	for _, h := range r.buffers {
		buffers = append(buffers, h)
	}
	r.buffers = map[string]*Handle{}
	r.files.Purge()
	dropped := append(buffers, r.takeDropped()...)
	r.mu.Unlock()

	for _, h := range buffers {
		h.stop()
	}
	r.emitDropped(EventUnloaded, dropped)
}

func (r *Registry) newHandle(kind Kind, path string, lines []string) *Handle {
	h := &Handle{kind: kind, path: path, reg: r}
	opts := append([]document.Option{
		document.WithLogger(r.logger.With(slog.String("path", path))),
		document.WithClock(r.clock),
		document.WithObserver(h.observe),
	}, r.docOptions...)
	h.doc = document.New(lines, opts...)
	return h
}

// loaded runs the initial parse and announces the document.
func (r *Registry) loaded(h *Handle) {
	h.mu.Lock()
	h.doc.Parse()
	results := h.takeResults()
	version := h.doc.Version()
	h.mu.Unlock()

	r.emit(Event{Type: EventLoaded, Kind: h.kind, Path: h.path, BufferID: h.id, Version: version})
	r.emitParsed(h, results)
}

// bufferFor must be called with r.mu held.
func (r *Registry) bufferFor(path string) *Handle {
	var found *Handle
	for _, h := range r.buffers {
		if h.path == path && (found == nil || h.id < found.id) {
			found = h
		}
	}
	return found
}

// takeDropped must be called with r.mu held.
func (r *Registry) takeDropped() []*Handle {
	out := r.dropped
	r.dropped = nil
	return out
}

func (r *Registry) emitDropped(typ EventType, hs []*Handle) {
	for _, h := range hs {
		h.stop()
		r.emit(Event{Type: typ, Kind: h.kind, Path: h.path, BufferID: h.id, Version: h.version()})
	}
}

func (r *Registry) emitParsed(h *Handle, results []document.ParseResult) {
	for i := range results {
		res := results[i]
		r.emit(Event{Type: EventParsed, Kind: h.kind, Path: h.path, BufferID: h.id, Version: res.Version, Parse: &res})
	}
}

func (r *Registry) emit(ev Event) {
	ev.Time = r.clock.Now()

	r.mu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = r.listeners[id]
	}
	r.mu.Unlock()

	for _, l := range ls {
		r.notify(l, ev)
	}
}

func (r *Registry) notify(l Listener, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("cache: listener panicked",
				slog.String("event", string(ev.Type)),
				slog.String("path", ev.Path),
				slog.Any("panic", p))
		}
	}()
	if err := l(ev); err != nil {
		r.logger.Warn("cache: listener failed",
			slog.String("event", string(ev.Type)),
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
	}
}
