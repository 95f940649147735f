// Package storage persists usage metrics and provider error logs in Postgres.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrInvalidQuery wraps listing parameters that cannot be served.
var ErrInvalidQuery = errors.New("invalid query")

var (
	metricColumns  = []string{"id", "voice_id", "token_count", "text_length", "api_type", "created_at"}
	metricSortable = []string{"created_at", "token_count", "text_length"}
	errorColumns   = []string{"id", "voice_id", "error_message", "api_type", "created_at"}
	errorSortable  = []string{"created_at"}
)

// Store is a Postgres backed metrics and error log store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// RecordMetric inserts m, assigning ID and CreatedAt when unset.
func (s *Store) RecordMetric(ctx context.Context, m Metric) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_metrics (id, voice_id, token_count, text_length, api_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.VoiceID, m.TokenCount, m.TextLength, string(m.APIType), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// RecordError inserts e, assigning ID and CreatedAt when unset.
func (s *Store) RecordError(ctx context.Context, e ErrorLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_logs (id, voice_id, error_message, api_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.VoiceID, e.ErrorMessage, string(e.APIType), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

func (s *Store) ListMetrics(ctx context.Context, q Query) (Page[Metric], error) {
	return list(ctx, s.db, "generation_metrics", metricColumns, metricSortable, q, func(rows *sql.Rows) (Metric, error) {
		var (
			m   Metric
			typ string
		)
		err := rows.Scan(&m.ID, &m.VoiceID, &m.TokenCount, &m.TextLength, &typ, &m.CreatedAt)
		m.APIType = APIType(typ)
		return m, err
	})
}

func (s *Store) ListErrors(ctx context.Context, q Query) (Page[ErrorLog], error) {
	return list(ctx, s.db, "error_logs", errorColumns, errorSortable, q, func(rows *sql.Rows) (ErrorLog, error) {
		var (
			e   ErrorLog
			typ string
		)
		err := rows.Scan(&e.ID, &e.VoiceID, &e.ErrorMessage, &typ, &e.CreatedAt)
		e.APIType = APIType(typ)
		return e, err
	})
}

// Prune deletes records older than before from both tables.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"generation_metrics", "error_logs"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < $1", before)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func list[T any](ctx context.Context, db *sql.DB, table string, columns, sortable []string, q Query, scan func(*sql.Rows) (T, error)) (Page[T], error) {
	q, err := q.normalize(sortable)
	if err != nil {
		return Page[T]{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	stmt := buildList(table, columns, q)

	page := Page[T]{Items: make([]T, 0), Page: q.Page, Limit: q.Limit}
	if err := db.QueryRowContext(ctx, stmt.count, stmt.args...).Scan(&page.Total); err != nil {
		return Page[T]{}, fmt.Errorf("count %s: %w", table, err)
	}

	args := append(append([]any{}, stmt.args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := db.QueryContext(ctx, stmt.list, args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return Page[T]{}, fmt.Errorf("scan %s: %w", table, err)
		}
		page.Items = append(page.Items, item)
	}
	return page, rows.Err()
}
