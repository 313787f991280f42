package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"ito/internal/domain"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process tree store. It honours the same contract as the
// remote stores: last write wins per path, no compare-and-swap, and
// subscribers see coalesced snapshots in write order.
type Memory struct {
	mu     sync.Mutex
	root   map[string]any
	feeds  map[int]*Feed
	nextID int
}

func NewMemory() *Memory {
	return &Memory{
		root:  make(map[string]any),
		feeds: make(map[int]*Feed),
	}
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := Split(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := Lookup(m.root, parts)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return json.Marshal(v)
}

func (m *Memory) Set(ctx context.Context, path string, value any) error {
	return m.Update(ctx, path, map[string]any{"": value})
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	return m.Set(ctx, path, nil)
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	writes, err := Expand(path, fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := make([]string, 0, len(writes))
	for _, w := range writes {
		if w.Value == nil {
			Delete(m.root, w.Parts)
		} else {
			Assign(m.root, w.Parts, w.Value)
		}
		changed = append(changed, Join(w.Parts...))
	}
	m.publish(changed)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error) {
	parts, err := Split(path)
	if err != nil {
		return nil, err
	}
	feed := NewFeed(Join(parts...), fn)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.feeds[id] = feed
	feed.Offer(m.snapshot(parts))
	m.mu.Unlock()

	go feed.Run(ctx, func() {
		m.mu.Lock()
		delete(m.feeds, id)
		m.mu.Unlock()
	})
	return feed.Stop, nil
}

func (m *Memory) FindByField(ctx context.Context, collection, field string, value any) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parts, err := Split(collection)
	if err != nil {
		return nil, err
	}
	want, err := Normalize(value)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte)
	node, ok := Lookup(m.root, parts)
	if !ok {
		return out, nil
	}
	children, _ := node.(map[string]any)
	for key, child := range children {
		obj, ok := child.(map[string]any)
		if !ok || !reflect.DeepEqual(obj[field], want) {
			continue
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		out[key] = raw
	}
	return out, nil
}

func (m *Memory) publish(changed []string) {
	for _, feed := range m.feeds {
		for _, c := range changed {
			if Related(feed.Path(), c) {
				parts, _ := Split(feed.Path())
				feed.Offer(m.snapshot(parts))
				break
			}
		}
	}
}

func (m *Memory) snapshot(parts []string) Snapshot {
	path := Join(parts...)
	v, ok := Lookup(m.root, parts)
	if !ok {
		return Snapshot{Path: path}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Exists: true, Value: raw}
}

// Write is one normalized leaf write produced by Expand.
type Write struct {
	Parts []string
	Value any
}

// Expand resolves an Update call into absolute, normalized writes.
func Expand(path string, fields map[string]any) ([]Write, error) {
	base, err := Split(path)
	if err != nil {
		return nil, err
	}
	writes := make([]Write, 0, len(fields))
	for key, value := range fields {
		rel, err := Split(key)
		if err != nil {
			return nil, err
		}
		parts := append(append(make([]string, 0, len(base)+len(rel)), base...), rel...)
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: cannot write the root", domain.ErrInvalidPath)
		}
		normalized, err := Normalize(value)
		if err != nil {
			return nil, err
		}
		writes = append(writes, Write{Parts: parts, Value: normalized})
	}
	// Ancestors first, so a cleared parent never swallows a sibling key write.
	slices.SortFunc(writes, func(a, b Write) int {
		if c := cmp.Compare(len(a.Parts), len(b.Parts)); c != 0 {
			return c
		}
		return strings.Compare(Join(a.Parts...), Join(b.Parts...))
	})
	return writes, nil
}
