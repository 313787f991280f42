package storage

import (
	"context"
	"errors"
	"fmt"
	"ito/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresRepo serves the curated topic catalog.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// Draw implements game.TopicSource with a random sample of the topics table.
func (r *PostgresRepo) Draw(ctx context.Context, n int, exclude []string) ([]domain.Topic, error) {
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := r.pool.Query(ctx,
		`SELECT title, min_label, max_label, set_name FROM topics
		WHERE NOT (title = ANY($2)) ORDER BY RANDOM() LIMIT $1`, n, exclude)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	topics := make([]domain.Topic, 0, n)
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.Title, &t.Min, &t.Max, &t.Set); err != nil {
			return nil, wrap(err)
		}
		topics = append(topics, t)
	}
	return topics, wrap(rows.Err())
}

func (r *PostgresRepo) AddTopic(ctx context.Context, t domain.Topic) error {
	if t.Set == "" {
		t.Set = "classic"
	}
	_, err := r.pool.Exec(ctx,
		"INSERT INTO topics(title, min_label, max_label, set_name) VALUES($1, $2, $3, $4)",
		t.Title, t.Min, t.Max, t.Set)
	if err != nil {
		var pgErr *pgconn.PgError
		// "23505" is the PostgreSQL error code for unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrTopicAlreadyExists
		}
		return wrap(err)
	}
	return nil
}

func (r *PostgresRepo) CountTopics(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM topics").Scan(&n); err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
}
