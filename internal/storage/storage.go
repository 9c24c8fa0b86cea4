// Package storage provides a generic persisted collection: a capped,
// de-duplicated, most-recent-first sequence of records backed by one
// namespace of a kv.Store.
//
// Every mutation is a read-modify-write cycle of the whole namespace value,
// serialized per namespace across all collections that share a backend.
// Durable data that cannot be decoded is treated as absent: it is logged and
// replaced on the next write, never surfaced as an error.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
)

// Options parameterizes a Collection for a record type.
type Options[T any] struct {
	// Namespace is the kv namespace holding the JSON array.
	Namespace string
	// Capacity bounds the sequence; 0 means unbounded.
	Capacity int
	// Key extracts the uniqueness key. Nil means records are unique by ID only.
	Key func(T) string
	// ID reads the record id.
	ID func(T) int64
	// SetID assigns the record id on Add.
	SetID func(*T, int64)
	// Bool resolves a named boolean field for Toggle; nil result means unknown field.
	Bool func(rec *T, field string) *bool
	// Validate, when set, is applied to records passed to Add.
	Validate func(*T) error
	// Now is the clock used for ids. Defaults to time.Now.
	Now func() time.Time
}

// Collection is a persisted most-recent-first sequence of T.
type Collection[T any] struct {
	store kv.Store
	opts  Options[T]

	mu     sync.RWMutex
	items  []T
	lastID int64
}

// ErrUnknownField is returned by Toggle for a field the record type does not expose.
var ErrUnknownField = errors.New("unknown boolean field")

// namespaceLocks serializes read-modify-write cycles per (backend, namespace).
var namespaceLocks sync.Map

type lockKey struct {
	store     kv.Store
	namespace string
}

// Lock returns the mutex guarding read-modify-write cycles on namespace in
// store. Packages persisting a single object share it with collections.
func Lock(store kv.Store, namespace string) *sync.Mutex {
	return lockFor(store, namespace)
}

func lockFor(store kv.Store, namespace string) *sync.Mutex {
	l, _ := namespaceLocks.LoadOrStore(lockKey{store: store, namespace: namespace}, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// New creates a Collection. Call Load to read the durable state.
func New[T any](store kv.Store, opts Options[T]) *Collection[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collection[T]{
		store: store,
		opts:  opts,
		items: make([]T, 0),
	}
}

// Namespace returns the kv namespace of the collection.
func (c *Collection[T]) Namespace() string {
	return c.opts.Namespace
}

// Load replaces the in-memory sequence with the durable one.
// Missing or malformed data yields an empty sequence. Only backend
// failures are returned, and the sequence is emptied in that case too.
func (c *Collection[T]) Load(ctx context.Context) error {
	l := lockFor(c.store, c.opts.Namespace)
	l.Lock()
	defer l.Unlock()

	items, err := c.read(ctx)
	if err != nil {
		c.setItems(make([]T, 0))
		return err
	}
	c.setItems(items)
	return nil
}

// read decodes the namespace. Caller must hold the namespace lock.
func (c *Collection[T]) read(ctx context.Context) ([]T, error) {
	raw, ok, err := c.store.Get(ctx, c.opts.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.opts.Namespace, err)
	}
	if !ok || raw == "" {
		return make([]T, 0), nil
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		corrupt := &models.StorageCorruptError{Namespace: c.opts.Namespace, Err: err}
		logger.Warn("Discarding stored collection: %v", corrupt)
		return make([]T, 0), nil
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

func (c *Collection[T]) setItems(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = items
	for _, it := range items {
		if id := c.opts.ID(it); id > c.lastID {
			c.lastID = id
		}
	}
}

// mutate runs one serialized read-modify-write cycle. fn returns the new
// sequence and whether anything changed; unchanged sequences are not written.
func (c *Collection[T]) mutate(ctx context.Context, fn func(items []T) ([]T, bool, error)) error {
	l := lockFor(c.store, c.opts.Namespace)
	l.Lock()
	defer l.Unlock()

	current, err := c.read(ctx)
	if err != nil {
		return err
	}
	c.setItems(current)

	working := make([]T, len(current))
	copy(working, current)
	next, changed, err := fn(working)
	if err != nil || !changed {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.opts.Namespace, err)
	}
	if err := c.store.Set(ctx, c.opts.Namespace, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.opts.Namespace, err)
	}

	c.setItems(next)
	return nil
}

// nextID returns a creation-timestamp id that is strictly greater than any id seen.
func (c *Collection[T]) nextID(items []T) int64 {
	c.mu.RLock()
	max := c.lastID
	c.mu.RUnlock()

	for _, it := range items {
		if id := c.opts.ID(it); id > max {
			max = id
		}
	}
	id := c.opts.Now().UnixMilli()
	if id <= max {
		id = max + 1
	}
	return id
}

// Add assigns a fresh id, drops any record with the same key, prepends rec,
// truncates to capacity and writes the sequence. It returns the stored record.
func (c *Collection[T]) Add(ctx context.Context, rec T) (T, error) {
	if c.opts.Validate != nil {
		if err := c.opts.Validate(&rec); err != nil {
			var zero T
			return zero, fmt.Errorf("invalid record: %w", err)
		}
	}

	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		c.opts.SetID(&rec, c.nextID(items))

		next := make([]T, 0, len(items)+1)
		next = append(next, rec)
		for _, it := range items {
			if c.sameKey(it, rec) {
				continue
			}
			next = append(next, it)
		}

		if c.opts.Capacity > 0 && len(next) > c.opts.Capacity {
			next = next[:c.opts.Capacity]
		}
		return next, true, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (c *Collection[T]) sameKey(a, b T) bool {
	if c.opts.Key == nil {
		return c.opts.ID(a) == c.opts.ID(b)
	}
	return c.opts.Key(a) == c.opts.Key(b)
}

// Remove deletes the record with id. A missing id is a no-op.
func (c *Collection[T]) Remove(ctx context.Context, id int64) (bool, error) {
	found := false
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		next := make([]T, 0, len(items))
		for _, it := range items {
			if c.opts.ID(it) == id {
				found = true
				continue
			}
			next = append(next, it)
		}
		return next, found, nil
	})
	return found, err
}

// RemoveIf deletes every record matching pred in one write and returns how
// many were removed.
func (c *Collection[T]) RemoveIf(ctx context.Context, pred func(T) bool) (int, error) {
	removed := 0
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		removed = 0
		next := make([]T, 0, len(items))
		for _, it := range items {
			if pred(it) {
				removed++
				continue
			}
			next = append(next, it)
		}
		return next, removed > 0, nil
	})
	return removed, err
}

// Toggle flips the named boolean field of the record with id. A missing id is a no-op.
func (c *Collection[T]) Toggle(ctx context.Context, id int64, field string) (bool, error) {
	if c.opts.Bool == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return c.Update(ctx, id, func(rec *T) (bool, error) {
		b := c.opts.Bool(rec, field)
		if b == nil {
			return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		*b = !*b
		return true, nil
	})
}

// Update applies fn to the record with id in place. fn reports whether it changed
// the record. The returned bool reports whether the record exists.
func (c *Collection[T]) Update(ctx context.Context, id int64, fn func(rec *T) (bool, error)) (bool, error) {
	found := false
	err := c.mutate(ctx, func(items []T) ([]T, bool, error) {
		for i := range items {
			if c.opts.ID(items[i]) != id {
				continue
			}
			found = true
			changed, err := fn(&items[i])
			return items, changed, err
		}
		return items, false, nil
	})
	return found, err
}

// List returns a copy of the sequence, most recent first.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the record with id.
func (c *Collection[T]) Get(id int64) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, it := range c.items {
		if c.opts.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
