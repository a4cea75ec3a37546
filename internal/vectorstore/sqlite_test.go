package vectorstore

import (
	"context"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(WithDSN(":memory:"))
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := testEntry("a1", "user1", 0)
	entry.Metadata.ImageURL = "https://example.com/img.jpg"
	entry.Metadata.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	matches, err := store.Query(ctx, testEmbedding(0), 3, "user1")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	got := matches[0]
	if got.ID != "a1" || got.Metadata.Content != "entry a1" {
		t.Errorf("unexpected entry: %+v", got.Entry)
	}
	if got.Metadata.ImageURL != "https://example.com/img.jpg" {
		t.Errorf("image URL not preserved: %q", got.Metadata.ImageURL)
	}
	if len(got.Metadata.Symptoms) != 1 || got.Metadata.Symptoms[0] != "symptom-a1" {
		t.Errorf("categories not preserved: %v", got.Metadata.Symptoms)
	}
	if got.Score < 0.99 {
		t.Errorf("expected near-identical similarity, got %f", got.Score)
	}
}

func TestSQLiteStore_QueryRanksBySimilarity(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, testEntry("far", "user1", 5)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.Upsert(ctx, testEntry("near", "user1", 0)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	matches, err := store.Query(ctx, testEmbedding(0), 2, "user1")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "near" {
		t.Errorf("expected nearest entry first, got %s", matches[0].ID)
	}
}

func TestSQLiteStore_UserIsolation(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, testEntry("a", "user1", 0)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.Upsert(ctx, testEntry("b", "user2", 0)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	matches, err := store.Query(ctx, testEmbedding(0), 10, "user1")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata.UserID != "user1" {
		t.Errorf("expected only user1 entries, got %+v", matches)
	}

	entries, err := store.CollectAll(ctx, "user2")
	if err != nil {
		t.Fatalf("CollectAll returned error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "b" {
		t.Errorf("expected only user2 entries, got %+v", entries)
	}
}

func TestSQLiteStore_DeleteUser(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, testEntry("a", "user1", 0)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := store.DeleteUser(ctx, "user1"); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	entries, err := store.CollectAll(ctx, "user1")
	if err != nil {
		t.Fatalf("CollectAll returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries after delete, got %d", len(entries))
	}
}
