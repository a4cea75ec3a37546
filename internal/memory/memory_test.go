package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/healthbook/healthbook/internal/models"
)

// Ensure both backends implement the Manager interface
func TestManager_Implementations(t *testing.T) {
	var _ Manager = (*InMemoryManager)(nil)
	var _ Manager = (*RedisManager)(nil)
}

func turn(role models.TurnRole, content string) models.Turn {
	return models.Turn{Role: role, Content: content, Timestamp: time.Now()}
}

func TestInMemoryManager_AppendAndRecent(t *testing.T) {
	m := NewInMemoryManager()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		role := models.TurnRoleUser
		if i%2 == 1 {
			role = models.TurnRoleAssistant
		}
		if err := m.Append(ctx, "user1", turn(role, fmt.Sprintf("turn %d", i))); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	turns, err := m.Recent(ctx, "user1", models.DefaultMemoryWindow)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != models.DefaultMemoryWindow {
		t.Fatalf("expected %d turns, got %d", models.DefaultMemoryWindow, len(turns))
	}
	// Window is the most recent turns in chronological order.
	if turns[0].Content != "turn 3" || turns[len(turns)-1].Content != "turn 7" {
		t.Errorf("unexpected window: first %q, last %q", turns[0].Content, turns[len(turns)-1].Content)
	}
}

func TestInMemoryManager_RecentFewerThanWindow(t *testing.T) {
	m := NewInMemoryManager()
	ctx := context.Background()

	if err := m.Append(ctx, "user1", turn(models.TurnRoleUser, "only one")); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	turns, err := m.Recent(ctx, "user1", 5)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "only one" {
		t.Errorf("unexpected turns: %+v", turns)
	}
}

func TestInMemoryManager_RecentUnknownUser(t *testing.T) {
	m := NewInMemoryManager()
	turns, err := m.Recent(context.Background(), "stranger", 5)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns for unknown user, got %d", len(turns))
	}
}

func TestInMemoryManager_Clear(t *testing.T) {
	m := NewInMemoryManager()
	ctx := context.Background()

	if err := m.Append(ctx, "user1", turn(models.TurnRoleUser, "hi")); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := m.Append(ctx, "user2", turn(models.TurnRoleUser, "hello")); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	if err := m.Clear(ctx, "user1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	turns, _ := m.Recent(ctx, "user1", 5)
	if len(turns) != 0 {
		t.Errorf("expected user1 cleared, got %d turns", len(turns))
	}
	// Clearing is scoped to one user.
	turns, _ = m.Recent(ctx, "user2", 5)
	if len(turns) != 1 {
		t.Errorf("expected user2 intact, got %d turns", len(turns))
	}
}

func TestInMemoryManager_EmptyUserID(t *testing.T) {
	m := NewInMemoryManager()
	ctx := context.Background()

	if err := m.Append(ctx, "", turn(models.TurnRoleUser, "hi")); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("Append: expected ErrEmptyUserID, got %v", err)
	}
	if _, err := m.Recent(ctx, "", 5); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("Recent: expected ErrEmptyUserID, got %v", err)
	}
	if err := m.Clear(ctx, ""); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("Clear: expected ErrEmptyUserID, got %v", err)
	}
}

func TestNewRedisManager_InvalidURL(t *testing.T) {
	if _, err := NewRedisManager(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for invalid Redis URL")
	}
}
