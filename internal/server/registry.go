package server

import (
	"sort"
	"sync"
)

// Registry maps an authenticated user to the single connection that
// currently represents them.
type Registry struct {
	mu    sync.RWMutex
	conns map[int]*Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int]*Client)}
}

// register binds userId to c and returns the connection it replaced, if any.
// bound is false when c already held the binding.
func (r *Registry) register(userId int, c *Client) (prev *Client, bound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev = r.conns[userId]
	if prev == c {
		return nil, false
	}
	r.conns[userId] = c

	return prev, true
}

// unregister removes the binding only if it still points at c. It reports
// whether the binding was removed.
func (r *Registry) unregister(userId int, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[userId]; ok && cur == c {
		delete(r.conns, userId)
		return true
	}

	return false
}

func (r *Registry) resolve(userId int) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conns[userId]
}

func (r *Registry) isOnline(userId int) bool {
	return r.resolve(userId) != nil
}

// snapshot returns every registered connection except the one bound to skip.
func (r *Registry) snapshot(skip int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for id, c := range r.conns {
		if id == skip {
			continue
		}
		clients = append(clients, c)
	}

	return clients
}

func (r *Registry) onlineUsers() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}

func (r *Registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
