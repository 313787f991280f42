package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ito/internal/domain"
	"ito/internal/logger"
	"ito/internal/store"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const notifyChannel = "document_changes"

// PostgresTree implements store.Store on a documents table: the first path
// segment is the collection, the second the document id, the rest a path
// inside the JSONB body. Writes lock the document row, so concurrent merge
// updates of one document serialize; a trigger NOTIFYs every change and one
// LISTEN connection fans it out to subscribers.
type PostgresTree struct {
	pool *pgxpool.Pool
	log  zerolog.Logger

	mu        sync.Mutex
	feeds     map[int]*store.Feed
	nextID    int
	listening bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewPostgresTree(pool *pgxpool.Pool, log zerolog.Logger) *PostgresTree {
	ctx, cancel := context.WithCancel(context.Background())
	return &PostgresTree{
		pool:   pool,
		log:    logger.ForComponent(log, "postgres-tree"),
		feeds:  make(map[int]*store.Feed),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close stops the change listener. The pool is left to its owner.
func (t *PostgresTree) Close() {
	t.cancel()
}

func (t *PostgresTree) Get(ctx context.Context, path string) ([]byte, error) {
	parts, err := store.Split(path)
	if err != nil {
		return nil, err
	}
	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("%w: cannot read the root", domain.ErrInvalidPath)
	case 1:
		return t.getCollection(ctx, parts[0])
	}

	var raw []byte
	err = t.pool.QueryRow(ctx,
		"SELECT body #> $3::text[] FROM documents WHERE collection = $1 AND id = $2",
		parts[0], parts[1], parts[2:]).Scan(&raw)
	if err != nil {
		return nil, wrap(err)
	}
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (t *PostgresTree) getCollection(ctx context.Context, collection string) ([]byte, error) {
	rows, err := t.pool.Query(ctx, "SELECT id, body FROM documents WHERE collection = $1", collection)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, wrap(err)
		}
		docs[id] = body
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return json.Marshal(docs)
}

func (t *PostgresTree) Set(ctx context.Context, path string, value any) error {
	return t.Update(ctx, path, map[string]any{"": value})
}

func (t *PostgresTree) Remove(ctx context.Context, path string) error {
	return t.Set(ctx, path, nil)
}

type docKey struct {
	collection string
	id         string
}

func (t *PostgresTree) Update(ctx context.Context, path string, fields map[string]any) error {
	writes, err := store.Expand(path, fields)
	if err != nil {
		return err
	}

	groups := make(map[docKey][]store.Write)
	var dropCollections []string
	for _, w := range writes {
		if len(w.Parts) == 1 {
			if w.Value != nil {
				return fmt.Errorf("%w: cannot replace a whole collection", domain.ErrInvalidPath)
			}
			dropCollections = append(dropCollections, w.Parts[0])
			continue
		}
		key := docKey{w.Parts[0], w.Parts[1]}
		groups[key] = append(groups[key], w)
	}
	keys := make([]docKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// Fixed lock order across writers.
	slices.SortFunc(keys, func(a, b docKey) int {
		if a.collection != b.collection {
			return strings.Compare(a.collection, b.collection)
		}
		return strings.Compare(a.id, b.id)
	})

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return wrap(err)
	}
	defer tx.Rollback(ctx)

	for _, c := range dropCollections {
		if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1", c); err != nil {
			return wrap(err)
		}
	}
	for _, k := range keys {
		if err := applyDocument(ctx, tx, k, groups[k]); err != nil {
			return err
		}
	}
	return wrap(tx.Commit(ctx))
}

func applyDocument(ctx context.Context, tx pgx.Tx, key docKey, writes []store.Write) error {
	var raw []byte
	err := tx.QueryRow(ctx,
		"SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE",
		key.collection, key.id).Scan(&raw)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return wrap(err)
	}
	body := map[string]any{}
	if raw != nil {
		if err := json.Unmarshal(raw, &body); err != nil {
			return fmt.Errorf("%w: corrupt document %s/%s: %w", domain.ErrStore, key.collection, key.id, err)
		}
	}

	for _, w := range writes {
		sub := w.Parts[2:]
		switch {
		case len(sub) == 0 && w.Value == nil:
			body = map[string]any{}
		case len(sub) == 0:
			obj, ok := w.Value.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: document %s/%s must be an object", domain.ErrInvalidPath, key.collection, key.id)
			}
			body = obj
		case w.Value == nil:
			store.Delete(body, sub)
		default:
			store.Assign(body, sub, w.Value)
		}
	}

	if len(body) == 0 {
		_, err := tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", key.collection, key.id)
		return wrap(err)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		key.collection, key.id, string(encoded))
	return wrap(err)
}

func (t *PostgresTree) FindByField(ctx context.Context, collection, field string, value any) (map[string][]byte, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	rows, err := t.pool.Query(ctx,
		"SELECT id, body FROM documents WHERE collection = $1 AND body -> $2 = $3::jsonb",
		collection, field, string(want))
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, wrap(err)
		}
		out[id] = body
	}
	return out, wrap(rows.Err())
}

func (t *PostgresTree) Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (func(), error) {
	parts, err := store.Split(path)
	if err != nil {
		return nil, err
	}
	feed := store.NewFeed(store.Join(parts...), fn)
	snap, err := t.snapshot(ctx, feed.Path())
	if err != nil {
		return nil, err
	}
	feed.Offer(snap)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.feeds[id] = feed
	if !t.listening {
		t.listening = true
		go t.listen()
	}
	t.mu.Unlock()

	go feed.Run(ctx, func() {
		t.mu.Lock()
		delete(t.feeds, id)
		t.mu.Unlock()
	})
	return feed.Stop, nil
}

func (t *PostgresTree) snapshot(ctx context.Context, path string) (store.Snapshot, error) {
	raw, err := t.Get(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return store.Snapshot{Path: path}, nil
	}
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Exists: true, Value: raw}, nil
}

func (t *PostgresTree) listen() {
	for t.ctx.Err() == nil {
		err := t.listenOnce(t.ctx)
		if t.ctx.Err() != nil {
			return
		}
		t.log.Warn().Err(err).Msg("change listener dropped, reconnecting")
		select {
		case <-t.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (t *PostgresTree) listenOnce(ctx context.Context) error {
	pooled, err := t.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	// Changes made while no listener was connected are not replayed, so
	// every subscriber gets a fresh read first.
	t.dispatch(ctx, "")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		t.dispatch(ctx, n.Payload)
	}
}

// dispatch refreshes every feed related to the changed document. An empty
// changed path refreshes all of them.
func (t *PostgresTree) dispatch(ctx context.Context, changed string) {
	t.mu.Lock()
	feeds := make([]*store.Feed, 0, len(t.feeds))
	for _, f := range t.feeds {
		if changed == "" || store.Related(f.Path(), changed) {
			feeds = append(feeds, f)
		}
	}
	t.mu.Unlock()

	for _, f := range feeds {
		snap, err := t.snapshot(ctx, f.Path())
		if err != nil {
			t.log.Warn().Err(err).Str("path", f.Path()).Msg("could not refresh subscriber")
			continue
		}
		f.Offer(snap)
	}
}
