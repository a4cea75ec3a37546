package emergency

import (
	"context"
	"testing"
	"time"
)

func TestService_HandleEmergency(t *testing.T) {
	svc := NewService()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	record := svc.HandleEmergency(context.Background(), "15550001")
	if record.UserID != "15550001" {
		t.Errorf("unexpected user ID: %s", record.UserID)
	}
	if record.Status != "emergency_triggered" {
		t.Errorf("unexpected status: %s", record.Status)
	}
	if !record.Timestamp.Equal(fixed) {
		t.Errorf("unexpected timestamp: %v", record.Timestamp)
	}

	records := svc.Records()
	if len(records) != 1 || records[0].UserID != "15550001" {
		t.Errorf("expected one recorded event, got %+v", records)
	}
}

func TestService_RecordsReturnsCopy(t *testing.T) {
	svc := NewService()
	svc.HandleEmergency(context.Background(), "15550001")

	records := svc.Records()
	records[0].UserID = "tampered"
	if svc.Records()[0].UserID != "15550001" {
		t.Error("expected Records to return a copy")
	}
}

func TestService_IsEmergency(t *testing.T) {
	svc := NewService()
	tests := []struct {
		message string
		want    bool
	}{
		{"SOS", true},
		{"emergency", true},
		{"I need HELP now", true},
		{"it is urgent", true},
		{"how are you", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := svc.IsEmergency(tt.message); got != tt.want {
			t.Errorf("IsEmergency(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}
