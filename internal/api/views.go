package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"reportview/internal/render"
	"reportview/internal/report"
)

// view is one successful page load: the report as loaded, its rendering and
// the assistant context built from it. Chat and drilldown requests address
// it by ID so the access checks are not repeated.
type view struct {
	ID         string
	Report     *report.Report
	Rendered   *render.View
	Context    string
	Drilldowns []render.Detail
	expires    time.Time
}

// viewRegistry holds at most max views. order lists IDs oldest first and
// may still name views already swept.
type viewRegistry struct {
	mu    sync.RWMutex
	views map[string]*view
	order []string
	ttl   time.Duration
	max   int
	now   func() time.Time
}

func newViewRegistry(ttl time.Duration, max int) *viewRegistry {
	return &viewRegistry{
		views: make(map[string]*view),
		ttl:   ttl,
		max:   max,
		now:   time.Now,
	}
}

// Add assigns v an ID and expiry and stores it, dropping the oldest views
// when the registry is full. It returns how many were dropped.
func (r *viewRegistry) Add(v *view) int {
	v.ID = uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	v.expires = r.now().Add(r.ttl)
	r.views[v.ID] = v
	r.order = append(r.order, v.ID)

	evicted := 0
	for len(r.views) > r.max && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		if _, ok := r.views[oldest]; ok {
			delete(r.views, oldest)
			evicted++
		}
	}
	return evicted
}

// Get returns the view unless it is unknown or past its TTL.
func (r *viewRegistry) Get(id string) (*view, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	if !ok || r.now().After(v.expires) {
		return nil, false
	}
	return v, true
}

// Sweep removes expired views and returns how many were removed.
func (r *viewRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, v := range r.views {
		if now.After(v.expires) {
			delete(r.views, id)
			n++
		}
	}
	if n > 0 {
		live := r.order[:0]
		for _, id := range r.order {
			if _, ok := r.views[id]; ok {
				live = append(live, id)
			}
		}
		r.order = live
	}
	return n
}

func (r *viewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}
