// Package emergency handles emergency trigger messages.
//
// The emergency path must succeed even when the inference adapter is
// unreachable, so it depends on nothing but the clock and a local recorder.
package emergency

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/healthbook/healthbook/internal/models"
)

// Keywords is the emergency trigger set, matched case-insensitively against
// the whole message ("urgent" participates only in containment checks).
var Keywords = map[string]struct{}{
	"sos":       {},
	"emergency": {},
	"help":      {},
	"urgent":    {},
}

// Service records emergency triggers. Records are kept in process memory; a
// real deployment would hand them to a dispatch system.
type Service struct {
	mu      sync.Mutex
	records []models.EmergencyRecord
	now     func() time.Time
}

// NewService creates an emergency service.
func NewService() *Service {
	return &Service{now: time.Now}
}

// HandleEmergency logs and records a timestamped emergency event for a user.
func (s *Service) HandleEmergency(ctx context.Context, userID string) models.EmergencyRecord {
	record := models.EmergencyRecord{
		UserID:    userID,
		Status:    "emergency_triggered",
		Timestamp: s.now(),
	}
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()

	slog.Warn("emergency trigger received", "user_id", userID, "timestamp", record.Timestamp)
	return record
}

// Records returns a copy of all recorded emergency events.
func (s *Service) Records() []models.EmergencyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EmergencyRecord, len(s.records))
	copy(out, s.records)
	return out
}

// IsEmergency reports whether a message contains an emergency keyword.
func (s *Service) IsEmergency(message string) bool {
	msg := strings.ToLower(message)
	for keyword := range Keywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
