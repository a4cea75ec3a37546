package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/healthbook/healthbook/internal/models"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a single-file Store for deployments without Postgres.
// Embeddings are stored as JSON arrays and cosine similarity is computed in
// Go over the user's partition, which stays small enough in practice.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path and runs
// migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite database", "error", err, "dsn", cfg.DSN)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite vector store ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// Upsert persists an entry, replacing any row with the same ID.
func (s *SQLiteStore) Upsert(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry, s.Dimensions()); err != nil {
		return err
	}
	conditions, symptoms, medications, incidents, bodyParts, err := marshalCategories(entry.Metadata)
	if err != nil {
		return err
	}
	embedding, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO medical_records (id, user_id, content, image_url, conditions, symptoms, medications, incidents, body_parts, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Metadata.UserID, entry.Metadata.Content, entry.Metadata.ImageURL,
		conditions, symptoms, medications, incidents, bodyParts,
		string(embedding), entry.Metadata.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}
	return nil
}

// Query loads the user's partition and ranks it by cosine similarity in Go.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int, userID string) ([]Match, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	if len(embedding) != s.Dimensions() {
		return nil, models.ErrDimensionMismatch
	}
	entries, err := s.collect(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Entry: e, Score: cosineSimilarity(embedding, e.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CollectAll returns up to CollectPageLimit entries for one user.
func (s *SQLiteStore) CollectAll(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	return s.collect(ctx, userID, CollectPageLimit)
}

func (s *SQLiteStore) collect(ctx context.Context, userID string, limit int) ([]Entry, error) {
	query := `
		SELECT id, user_id, content, image_url, conditions, symptoms, medications, incidents, body_parts, embedding, created_at
		FROM medical_records
		WHERE user_id = ?
		ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect medical records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var conditions, symptoms, medications, incidents, bodyParts []byte
		var embedding string
		err := rows.Scan(&e.ID, &e.Metadata.UserID, &e.Metadata.Content, &e.Metadata.ImageURL,
			&conditions, &symptoms, &medications, &incidents, &bodyParts,
			&embedding, &e.Metadata.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan medical record: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &e.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		if err := unmarshalCategories(&e.Metadata, conditions, symptoms, medications, incidents, bodyParts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteUser removes all entries for one user.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM medical_records WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete medical records: %w", err)
	}
	deleted, _ := result.RowsAffected()
	slog.Info("vector store cleared for user", "user_id", userID, "deleted", deleted)
	return nil
}

// Dimensions returns the embedding dimension of the store schema.
func (s *SQLiteStore) Dimensions() int {
	return models.EmbeddingDimensions
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
