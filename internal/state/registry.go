package state

import "sync"

// Registry is the canonical order-by-id map. The dispatch loop is its single
// writer; the mutex only covers readers outside the loop (monitor, tests).
type Registry struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewRegistry() *Registry {
	return &Registry{orders: make(map[string]*Order)}
}

func (r *Registry) Get(id string) (*Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

func (r *Registry) Put(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// OrdersFor returns the live orders for one symbol. The slice is fresh but the
// orders are shared; callers treat them as read-only.
func (r *Registry) OrdersFor(symbol string) []*Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Order
	for _, o := range r.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out
}
