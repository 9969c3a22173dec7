// Package registry provides a handler registry for dispatching chat
// messages to the command or text handler that should answer them.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"flightcalc/internal/chat"
)

// ErrNoHandler is returned by Dispatch when no handler matches.
var ErrNoHandler = errors.New("no handler for message")

// Handler is implemented by each message handler.
type Handler interface {
	// Name returns the handler's unique identifier.
	Name() string

	// Match reports whether the handler answers msg. It must be cheap and
	// free of side effects.
	Match(msg *chat.Message) bool

	// Priority determines order when several handlers match.
	// Lower number = checked first.
	Priority() int

	// Handle answers the message.
	Handle(ctx context.Context, msg *chat.Message) (chat.Reply, error)
}

// Registry holds all registered handlers ordered by priority.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
	sorted   bool
}

// New creates a new Registry instance.
func New(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds a handler to the registry.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
	r.sorted = false
}

// Sort orders handlers by priority. Handlers with equal priority keep
// registration order. Dispatch sorts lazily if needed.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return r.handlers[i].Priority() < r.handlers[j].Priority()
	})
	r.sorted = true
}

// Lookup returns the first handler matching msg, or nil.
func (r *Registry) Lookup(msg *chat.Message) Handler {
	r.mu.RLock()
	if !r.sorted {
		r.mu.RUnlock()
		r.Sort()
		r.mu.RLock()
	}
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.Match(msg) {
			return h
		}
	}
	return nil
}

// Dispatch routes a message to the first matching handler.
func (r *Registry) Dispatch(ctx context.Context, msg *chat.Message) (chat.Reply, error) {
	h := r.Lookup(msg)
	if h == nil {
		return chat.Reply{ChatID: int64(msg.ChatID)}, ErrNoHandler
	}
	return h.Handle(ctx, msg)
}

// Names returns registered handler names in dispatch order.
func (r *Registry) Names() []string {
	r.Sort()

	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.Name())
	}
	return names
}
