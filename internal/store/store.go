// Package store is the contract every game component uses to reach shared room
// state: a tree of JSON values addressed by slash separated paths, with
// last-write-wins semantics per path and push subscriptions.
package store

import (
	"context"
	"encoding/json"
	"ito/internal/domain"
)

type Store interface {
	// Get returns the JSON encoded value at path, or domain.ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Set replaces the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update upserts every key of fields under path in one write. Keys may be
	// relative paths ("votes/p1"); nil values remove the key.
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	// Subscribe calls fn with the current value at path and again after every
	// change at or below it, until unsubscribe is called or ctx ends.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (unsubscribe func(), err error)
	// FindByField returns the children of collection whose field equals value.
	FindByField(ctx context.Context, collection, field string, value any) (map[string][]byte, error)
}

type Snapshot struct {
	Path   string
	Exists bool
	Value  []byte
}

func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return domain.ErrNotFound
	}
	return json.Unmarshal(s.Value, v)
}

// GetInto reads path and decodes it into v.
func GetInto(ctx context.Context, s Store, path string, v any) error {
	raw, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
