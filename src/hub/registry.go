package hub

import (
	"iter"
	"sync"

	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Registry tracks live clients by handle and by transport.
// It is safe for concurrent use; iteration works on a snapshot so no lock
// is held while frames are handed to clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	conns   map[types.Conn]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		conns:   make(map[types.Conn]*Client),
	}
}

// Add stores c unless its transport is already registered, in which case the
// existing client is returned with added=false.
func (r *Registry) Add(c *Client) (existing *Client, added bool) {
	existing, added, _ = r.AddWithin(c, 0)
	return existing, added
}

// AddWithin is Add with a capacity check taken under the same lock.
// A limit of zero or less means unlimited. A transport that is already
// registered is returned even when the registry is full.
func (r *Registry) AddWithin(c *Client, limit int) (existing *Client, added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[c.conn]; ok {
		return prev, false, nil
	}
	if limit > 0 && len(r.clients) >= limit {
		return nil, false, ErrTooManyConnections
	}
	r.clients[c.ID] = c
	r.conns[c.conn] = c
	return c, true, nil
}

// Remove deletes the client with the given handle. The second result is false
// when the handle was not registered.
func (r *Registry) Remove(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	delete(r.conns, c.conn)
	return c, true
}

// Get returns the client registered under id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Matching yields every client whose organization equals organizationID.
// An empty organizationID matches all clients.
func (r *Registry) Matching(organizationID string) iter.Seq[*Client] {
	r.mu.RLock()
	matches := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if organizationID == "" || c.OrganizationID == organizationID {
			matches = append(matches, c)
		}
	}
	r.mu.RUnlock()

	return func(yield func(*Client) bool) {
		for _, c := range matches {
			if !yield(c) {
				return
			}
		}
	}
}
