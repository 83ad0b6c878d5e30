package login

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Page is one mounted login page: its form and its request coordinator
type Page struct {
	Form        *Form
	Coordinator *Coordinator
}

// Registry keeps the mounted login page of each browser client. Pages idle
// longer than the ttl, pushed out by capacity, or released are torn down.
type Registry struct {
	mu      sync.Mutex
	pages   *expirable.LRU[string, *Page]
	newPage func(clientID string) *Coordinator
}

// NewRegistry creates a registry; newCoordinator builds the coordinator of a freshly mounted page
func NewRegistry(size int, ttl time.Duration, newCoordinator func(clientID string) *Coordinator) *Registry {
	onEvict := func(_ string, p *Page) {
		p.Coordinator.Close()
	}
	return &Registry{
		pages:   expirable.NewLRU[string, *Page](size, onEvict, ttl),
		newPage: newCoordinator,
	}
}

// Page returns the page mounted for clientID, mounting a new one if needed.
// Every access extends the page lifetime.
func (r *Registry) Page(clientID string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pages.Get(clientID)
	if !ok {
		// Get hides an expired entry the reaper has not dropped yet; Add would
		// overwrite it without the eviction callback, so remove it first
		r.pages.Remove(clientID)
		p = &Page{
			Form:        &Form{},
			Coordinator: r.newPage(clientID),
		}
	}
	r.pages.Add(clientID, p)
	return p
}

// Lookup returns the mounted page without mounting one. Like Page, a hit
// extends the page lifetime, so a page kept open by status polling stays mounted.
func (r *Registry) Lookup(clientID string) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pages.Get(clientID)
	if !ok {
		return nil, false
	}
	r.pages.Add(clientID, p)
	return p, true
}

// Release tears down the page of clientID, e.g. after navigating away on success
func (r *Registry) Release(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages.Remove(clientID)
}

// Len returns the number of mounted pages
func (r *Registry) Len() int {
	return r.pages.Len()
}
