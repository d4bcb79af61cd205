package telemetry

import (
	"fmt"
	"sort"
	"sync"
)

// Table is an in-memory Source. Transports publish into it; the sampler
// reads from it.
type Table struct {
	mu      sync.RWMutex
	values  map[string]any
	version uint64
	changed chan struct{}
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		values:  make(map[string]any),
		changed: make(chan struct{}),
	}
}

// Publish stores v under name. Only float64, bool and string values are
// accepted; ints are widened to float64.
func (t *Table) Publish(name string, v any) error {
	norm, err := normalise(v)
	if err != nil {
		return fmt.Errorf("publish %q: %w", name, err)
	}
	t.mu.Lock()
	t.values[name] = norm
	t.bumpLocked()
	t.mu.Unlock()
	return nil
}

// Apply publishes every entry of values in one update. A nil value deletes
// the entry. Entries with unsupported types are skipped and reported in the
// returned error.
func (t *Table) Apply(values map[string]any) error {
	var bad []string
	t.mu.Lock()
	for name, v := range values {
		if v == nil {
			delete(t.values, name)
			continue
		}
		norm, err := normalise(v)
		if err != nil {
			bad = append(bad, name)
			continue
		}
		t.values[name] = norm
	}
	t.bumpLocked()
	t.mu.Unlock()

	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("unsupported value types for %v", bad)
	}
	return nil
}

// Replace swaps the whole table for values, as one update. A nil value
// leaves the entry out, as Apply would delete it. Entries with unsupported
// types are dropped and reported in the returned error.
func (t *Table) Replace(values map[string]any) error {
	next := make(map[string]any, len(values))
	var bad []string
	for name, v := range values {
		if v == nil {
			continue
		}
		norm, err := normalise(v)
		if err != nil {
			bad = append(bad, name)
			continue
		}
		next[name] = norm
	}

	t.mu.Lock()
	t.values = next
	t.bumpLocked()
	t.mu.Unlock()

	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("unsupported value types for %v", bad)
	}
	return nil
}

// Delete removes name so subscribers fall back to their defaults.
func (t *Table) Delete(name string) {
	t.mu.Lock()
	delete(t.values, name)
	t.bumpLocked()
	t.mu.Unlock()
}

// Lookup returns the raw value stored under name.
func (t *Table) Lookup(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

// Values returns a copy of every stored value.
func (t *Table) Values() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Version increments on every change.
func (t *Table) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Changed returns a channel that is closed on the next change.
func (t *Table) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

func (t *Table) bumpLocked() {
	t.version++
	close(t.changed)
	t.changed = make(chan struct{})
}

// Double subscribes to a numeric channel.
func (t *Table) Double(name string, def float64) Subscriber[float64] {
	return &entry[float64]{table: t, name: name, def: def}
}

// Boolean subscribes to a boolean channel.
func (t *Table) Boolean(name string, def bool) Subscriber[bool] {
	return &entry[bool]{table: t, name: name, def: def}
}

// String subscribes to a text channel.
func (t *Table) String(name string, def string) Subscriber[string] {
	return &entry[string]{table: t, name: name, def: def}
}

type entry[T Value] struct {
	table *Table
	name  string
	def   T
}

func (e *entry[T]) Name() string { return e.name }

// Get returns the default when nothing, or a value of another type, was
// published under the name.
func (e *entry[T]) Get() T {
	v, ok := e.table.Lookup(e.name)
	if !ok {
		return e.def
	}
	if tv, ok := v.(T); ok {
		return tv
	}
	return e.def
}

func normalise(v any) (any, error) {
	switch x := v.(type) {
	case float64, bool, string:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
