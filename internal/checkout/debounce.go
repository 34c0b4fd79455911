package checkout

import (
	"sync"
	"time"
)

const pruneThreshold = 256

// Debouncer allows one call per key per fixed window. It is process local
// and best effort; losing it on restart only re-opens a window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (d *Debouncer) Allow(key string) bool {
	if d == nil || d.window <= 0 || key == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if len(d.last) > pruneThreshold {
		for k, at := range d.last {
			if now.Sub(at) >= d.window {
				delete(d.last, k)
			}
		}
	}
	if at, ok := d.last[key]; ok && now.Sub(at) < d.window {
		return false
	}
	d.last[key] = now
	return true
}
