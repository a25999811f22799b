package middleware

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/pKV/lib/provider"
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Registry keeps middlewares in registration order, keyed by name.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	middlewares *linkedhashmap.Map // name -> Middleware
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{middlewares: linkedhashmap.New()}
}

// Register appends m. Names must be unique.
func (r *Registry) Register(m Middleware) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.middlewares.Get(m.Name()); exists {
		return fmt.Errorf("middleware %q is already registered", m.Name())
	}
	r.middlewares.Put(m.Name(), m)
	return nil
}

// Get returns the middleware registered under name.
func (r *Registry) Get(name string) (Middleware, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.middlewares.Get(name)
	if !ok {
		return nil, false
	}
	return m.(Middleware), true
}

// Size returns the number of registered middlewares.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.middlewares.Size()
}

// List returns all middlewares in registration order.
func (r *Registry) List() []Middleware {
	return r.filter(func(Middleware) bool { return true })
}

// GetPreMiddlewares returns, in registration order, the middlewares observing method before the
// provider.
func (r *Registry) GetPreMiddlewares(method provider.Method) []Middleware {
	return r.filter(func(m Middleware) bool { return m.Conditions().PreProvider.Has(method) })
}

// GetPostMiddlewares returns, in registration order, the middlewares observing method after the
// provider.
func (r *Registry) GetPostMiddlewares(method provider.Method) []Middleware {
	return r.filter(func(m Middleware) bool { return m.Conditions().PostProvider.Has(method) })
}

func (r *Registry) filter(keep func(Middleware) bool) []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Middleware, 0, r.middlewares.Size())
	it := r.middlewares.Iterator()
	for it.Next() {
		m := it.Value().(Middleware)
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
