package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/healthbook/healthbook/internal/whatsapp"
)

// cloudSender is the subset of the Cloud API client used by CloudService.
// Kept minimal so tests can substitute a mock.
type cloudSender interface {
	SendText(ctx context.Context, to, body string) error
	SendDocument(ctx context.Context, to, path, filename, caption string) error
}

// CloudService implements Service using the WhatsApp Business Cloud API client.
type CloudService struct {
	client  cloudSender
	mu      sync.RWMutex
	stopped bool
}

// NewCloudService creates a CloudService wrapping the given Cloud API client.
func NewCloudService(client *whatsapp.Client) *CloudService {
	return &CloudService{client: client}
}

// newCloudServiceWithSender is used by tests to inject a mock sender.
func newCloudServiceWithSender(client cloudSender) *CloudService {
	return &CloudService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by removing all non-numeric characters.
func (s *CloudService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

// SendText sends a text message through the Cloud API.
func (s *CloudService) SendText(ctx context.Context, to, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudService SendText validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendText(ctx, canonicalTo, body)
}

// SendDocument sends a document message through the Cloud API's two-step
// upload-then-reference flow.
func (s *CloudService) SendDocument(ctx context.Context, to, path, filename, caption string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("CloudService SendDocument validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendDocument(ctx, canonicalTo, path, filename, caption)
}

// Stop marks the service stopped; subsequent sends fail fast.
func (s *CloudService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("CloudService stopped")
}

func (s *CloudService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
