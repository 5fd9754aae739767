package registry

import (
	"log/slog"
	"sync"
	"time"

	"ratefeed/internal/provider"
)

// cooldownThreshold is how many consecutive failures a source needs
// before a configured cooldown starts skipping it.
const cooldownThreshold = 3

// Health is the per-source failure record. It is reporting state only:
// the resolvers retry a failing source from a clean slate on every call
// unless a cooldown is explicitly configured.
type Health struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
}

// Registry owns the adapter set and the fallback order. Adapters never
// hold a reference back; all mutation goes through the mutex here.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	adapters map[string]provider.Provider
	order    []string
	keys     map[string]string
	health   map[string]*Health

	now func() time.Time
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		adapters: make(map[string]provider.Provider),
		keys:     make(map[string]string),
		health:   make(map[string]*Health),
		now:      time.Now,
	}
}

// Add registers (or overwrites) an adapter under name. A negative
// priority appends; an explicit one re-inserts the name at that index,
// clamped to the list length. A key stored for the name before the
// adapter existed is forwarded on registration.
func (r *Registry) Add(name string, p provider.Provider, priority int) bool {
	if name == "" || p == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[name] = p
	if key := r.keys[name]; key != "" {
		if k, ok := p.(provider.Keyed); ok {
			k.SetAPIKey(key)
		}
	}

	if priority < 0 {
		if !contains(r.order, name) {
			r.order = append(r.order, name)
		}
	} else {
		r.order = remove(r.order, name)
		if priority > len(r.order) {
			priority = len(r.order)
		}
		rest := append([]string{name}, r.order[priority:]...)
		r.order = append(r.order[:priority], rest...)
	}
	r.logger.Info("source registered", "source", name, "order", r.order)
	return true
}

// Remove drops the adapter and its place in the fallback order.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return false
	}
	delete(r.adapters, name)
	delete(r.health, name)
	r.order = remove(r.order, name)
	r.logger.Info("source removed", "source", name)
	return true
}

// UpdateKey stores an API key for a source name. The key is kept even
// when no adapter is registered under the name yet, and forwarded to
// the adapter's key-rotation capability when there is one.
func (r *Registry) UpdateKey(name, key string) bool {
	if name == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[name] = key
	if p, ok := r.adapters[name]; ok {
		if k, ok := p.(provider.Keyed); ok {
			k.SetAPIKey(key)
		}
	}
	return true
}

// UpdatePriority replaces the stored order. Names not registered are
// dropped; registered adapters missing from newOrder are appended after
// it, so every adapter always stays reachable through the list.
func (r *Registry) UpdatePriority(newOrder []string) bool {
	if len(newOrder) == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]string, 0, len(r.adapters))
	seen := make(map[string]struct{}, len(newOrder))
	for _, name := range newOrder {
		if _, ok := r.adapters[name]; !ok {
			r.logger.Warn("ignoring unknown source in priority order", "source", name)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		next = append(next, name)
	}
	for _, name := range r.order {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			next = append(next, name)
		}
	}
	r.order = next
	r.logger.Info("priority updated", "order", r.order)
	return true
}

// EffectiveOrder returns the fallback order for one call. A registered
// preferred name is moved to the front; the stored list is untouched.
func (r *Registry) EffectiveOrder(preferred string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	_, hasPreferred := r.adapters[preferred]
	if preferred != "" && hasPreferred {
		out = append(out, preferred)
	}
	for _, name := range r.order {
		if name == preferred && hasPreferred {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Get looks up one adapter by name.
func (r *Registry) Get(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.adapters[name]
	return p, ok
}

// Names returns a copy of the stored priority list.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Snapshot returns the adapters keyed by name, for fan-out callers.
func (r *Registry) Snapshot() map[string]provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]provider.Provider, len(r.adapters))
	for name, p := range r.adapters {
		out[name] = p
	}
	return out
}

// Pricers returns the adapters that can answer spot prices.
func (r *Registry) Pricers() map[string]provider.CurrentPricer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]provider.CurrentPricer, len(r.adapters))
	for name, p := range r.adapters {
		if pricer, ok := p.(provider.CurrentPricer); ok {
			out[name] = pricer
		}
	}
	return out
}

// ReportSuccess resets the failure streak for a source.
func (r *Registry) ReportSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthFor(name)
	h.ConsecutiveFailures = 0
	h.LastSuccess = r.now()
}

// ReportFailure extends the failure streak for a source.
func (r *Registry) ReportFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthFor(name)
	h.ConsecutiveFailures++
	h.LastFailure = r.now()
}

// HealthOf returns a copy of the source's failure record.
func (r *Registry) HealthOf(name string) Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.health[name]; ok {
		return *h
	}
	return Health{}
}

// InCooldown reports whether a source has failed often enough, and
// recently enough, to be skipped for the given cooldown window.
func (r *Registry) InCooldown(name string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[name]
	if !ok || h.ConsecutiveFailures < cooldownThreshold {
		return false
	}
	return r.now().Sub(h.LastFailure) < cooldown
}

func (r *Registry) healthFor(name string) *Health {
	h, ok := r.health[name]
	if !ok {
		h = &Health{}
		r.health[name] = h
	}
	return h
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

func remove(list []string, name string) []string {
	out := list[:0]
	for _, v := range list {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}
