// Package vectorstore persists per-user embedding vectors with their medical
// context metadata and serves similarity queries scoped to a single user.
//
// Three backends are provided: PostgreSQL with pgvector (production), SQLite
// with cosine similarity computed in Go (single-node deployments), and an
// in-memory store (tests and development). Entries are append-only: fresh
// UUIDs are generated per conversation turn and nothing is ever updated in
// place or expired.
package vectorstore

import (
	"context"
	"time"

	"github.com/healthbook/healthbook/internal/models"
)

// CollectPageLimit caps how many entries CollectAll returns for one user.
// Report generation tolerates this as a known limitation rather than
// paginating exhaustively.
const CollectPageLimit = 100

// Metadata is the structured payload stored alongside each embedding.
// UserID is always set and is the sole scoping key for retrieval.
type Metadata struct {
	Content     string    `json:"content"`
	UserID      string    `json:"user_id"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Conditions  []string  `json:"conditions"`
	Symptoms    []string  `json:"symptoms"`
	Medications []string  `json:"medications"`
	Incidents   []string  `json:"incidents"`
	BodyParts   []string  `json:"body_parts"`
}

// Entry is one stored (embedding, metadata) pair.
type Entry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Match is a query result with its similarity score (higher is closer).
type Match struct {
	Entry
	Score float64 `json:"score"`
}

// Store is the per-user vector store interface.
type Store interface {
	// Upsert persists an entry. Idempotent for a stable ID; IDs here are
	// freshly generated per turn, so the operation is effectively append-only.
	Upsert(ctx context.Context, entry Entry) error

	// Query returns up to topK entries for the given user ordered by
	// descending similarity to the query embedding. The user filter is
	// applied by the backend; results never include another user's entries.
	Query(ctx context.Context, embedding []float32, topK int, userID string) ([]Match, error)

	// CollectAll returns all entries for a user, capped at CollectPageLimit.
	// Order is unspecified.
	CollectAll(ctx context.Context, userID string) ([]Entry, error)

	// DeleteUser removes every entry belonging to a user. Used only by the
	// clear-history control phrase.
	DeleteUser(ctx context.Context, userID string) error

	// Dimensions returns the configured embedding dimension.
	Dimensions() int

	// Close releases backend resources.
	Close() error
}

// validateEntry rejects entries that would corrupt the per-user partition.
func validateEntry(entry Entry, dimensions int) error {
	if entry.Metadata.UserID == "" {
		return models.ErrEmptyUserID
	}
	if len(entry.Embedding) != dimensions {
		return models.ErrDimensionMismatch
	}
	return nil
}
