package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/healthbook/healthbook/internal/models"
)

// InMemoryStore is a Store for tests and development. Entries are partitioned
// by user ID, mirroring the isolation guarantee of the SQL backends.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry // user ID -> entries
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

// Upsert persists an entry, replacing any existing entry with the same ID.
func (s *InMemoryStore) Upsert(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry, s.Dimensions()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userEntries := s.entries[entry.Metadata.UserID]
	for i, existing := range userEntries {
		if existing.ID == entry.ID {
			userEntries[i] = entry
			return nil
		}
	}
	s.entries[entry.Metadata.UserID] = append(userEntries, entry)
	return nil
}

// Query ranks one user's entries by cosine similarity.
func (s *InMemoryStore) Query(ctx context.Context, embedding []float32, topK int, userID string) ([]Match, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	if len(embedding) != s.Dimensions() {
		return nil, models.ErrDimensionMismatch
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.entries[userID]))
	for _, e := range s.entries[userID] {
		matches = append(matches, Match{Entry: e, Score: cosineSimilarity(embedding, e.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CollectAll returns up to CollectPageLimit entries for one user.
func (s *InMemoryStore) CollectAll(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	userEntries := s.entries[userID]
	if len(userEntries) > CollectPageLimit {
		userEntries = userEntries[:CollectPageLimit]
	}
	out := make([]Entry, len(userEntries))
	copy(out, userEntries)
	return out, nil
}

// DeleteUser removes all entries for one user.
func (s *InMemoryStore) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// Dimensions returns the embedding dimension.
func (s *InMemoryStore) Dimensions() int {
	return models.EmbeddingDimensions
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
