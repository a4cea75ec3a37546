package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/pgvector/pgvector-go"

	_ "github.com/lib/pq"

	"github.com/healthbook/healthbook/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a pgvector-backed Store. The embedding column is declared
// with the system-wide dimension; inserting a vector of any other length is a
// database error, which keeps the dimension invariant enforced server-side.
type PostgresStore struct {
	db *sql.DB
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// NewPostgresStore creates a pgvector-backed store and runs migrations.
// Migration failure is fatal to the caller, not retried.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres vector store ready")
	return &PostgresStore{db: db}, nil
}

// Upsert persists an entry, replacing any row with the same ID.
func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry, s.Dimensions()); err != nil {
		return err
	}
	conditions, symptoms, medications, incidents, bodyParts, err := marshalCategories(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medical_records (id, user_id, content, image_url, conditions, symptoms, medications, incidents, body_parts, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			image_url = EXCLUDED.image_url,
			conditions = EXCLUDED.conditions,
			symptoms = EXCLUDED.symptoms,
			medications = EXCLUDED.medications,
			incidents = EXCLUDED.incidents,
			body_parts = EXCLUDED.body_parts,
			embedding = EXCLUDED.embedding`,
		entry.ID, entry.Metadata.UserID, entry.Metadata.Content, entry.Metadata.ImageURL,
		conditions, symptoms, medications, incidents, bodyParts,
		pgvector.NewVector(entry.Embedding), entry.Metadata.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}
	return nil
}

// Query returns the topK closest entries for one user by cosine similarity.
// The user filter is part of the SQL WHERE clause, so cross-user leakage is
// impossible regardless of raw similarity scores.
func (s *PostgresStore) Query(ctx context.Context, embedding []float32, topK int, userID string) ([]Match, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	if len(embedding) != s.Dimensions() {
		return nil, models.ErrDimensionMismatch
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, image_url, conditions, symptoms, medications, incidents, body_parts, embedding, created_at,
			1 - (embedding <=> $1) AS score
		FROM medical_records
		WHERE user_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), userID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query medical records: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var vec pgvector.Vector
		var conditions, symptoms, medications, incidents, bodyParts []byte
		err := rows.Scan(&m.ID, &m.Metadata.UserID, &m.Metadata.Content, &m.Metadata.ImageURL,
			&conditions, &symptoms, &medications, &incidents, &bodyParts,
			&vec, &m.Metadata.CreatedAt, &m.Score)
		if err != nil {
			return nil, fmt.Errorf("scan medical record: %w", err)
		}
		m.Embedding = vec.Slice()
		if err := unmarshalCategories(&m.Metadata, conditions, symptoms, medications, incidents, bodyParts); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CollectAll returns up to CollectPageLimit entries for one user.
func (s *PostgresStore) CollectAll(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, image_url, conditions, symptoms, medications, incidents, body_parts, embedding, created_at
		FROM medical_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, CollectPageLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("collect medical records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var vec pgvector.Vector
		var conditions, symptoms, medications, incidents, bodyParts []byte
		err := rows.Scan(&e.ID, &e.Metadata.UserID, &e.Metadata.Content, &e.Metadata.ImageURL,
			&conditions, &symptoms, &medications, &incidents, &bodyParts,
			&vec, &e.Metadata.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan medical record: %w", err)
		}
		e.Embedding = vec.Slice()
		if err := unmarshalCategories(&e.Metadata, conditions, symptoms, medications, incidents, bodyParts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteUser removes all entries for one user.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM medical_records WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete medical records: %w", err)
	}
	deleted, _ := result.RowsAffected()
	slog.Info("vector store cleared for user", "user_id", userID, "deleted", deleted)
	return nil
}

// Dimensions returns the embedding dimension of the store schema.
func (s *PostgresStore) Dimensions() int {
	return models.EmbeddingDimensions
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func marshalCategories(m Metadata) (conditions, symptoms, medications, incidents, bodyParts []byte, err error) {
	if conditions, err = json.Marshal(emptyIfNil(m.Conditions)); err != nil {
		return
	}
	if symptoms, err = json.Marshal(emptyIfNil(m.Symptoms)); err != nil {
		return
	}
	if medications, err = json.Marshal(emptyIfNil(m.Medications)); err != nil {
		return
	}
	if incidents, err = json.Marshal(emptyIfNil(m.Incidents)); err != nil {
		return
	}
	bodyParts, err = json.Marshal(emptyIfNil(m.BodyParts))
	return
}

func unmarshalCategories(m *Metadata, conditions, symptoms, medications, incidents, bodyParts []byte) error {
	for _, pair := range []struct {
		data []byte
		dst  *[]string
	}{
		{conditions, &m.Conditions},
		{symptoms, &m.Symptoms},
		{medications, &m.Medications},
		{incidents, &m.Incidents},
		{bodyParts, &m.BodyParts},
	} {
		if len(pair.data) == 0 {
			*pair.dst = []string{}
			continue
		}
		if err := json.Unmarshal(pair.data, pair.dst); err != nil {
			return fmt.Errorf("unmarshal category metadata: %w", err)
		}
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
