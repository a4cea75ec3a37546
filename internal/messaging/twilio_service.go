package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/healthbook/healthbook/internal/twiliowhatsapp"
)

// documentUploader publishes a local file so Twilio can fetch it by URL.
// The S3 adapter satisfies this.
type documentUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// TwilioService implements Service using the Twilio WhatsApp API.
// Twilio delivers documents by media URL rather than direct upload, so the
// service publishes report files through the object store first.
type TwilioService struct {
	client   twiliowhatsapp.Sender
	uploader documentUploader
	mu       sync.RWMutex
	stopped  bool
}

// NewTwilioService creates a TwilioService. The uploader may be nil, in which
// case SendDocument fails with a configuration error.
func NewTwilioService(client twiliowhatsapp.Sender, uploader documentUploader) *TwilioService {
	return &TwilioService{client: client, uploader: uploader}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by removing all non-numeric characters.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

// SendText sends a text message via Twilio.
func (s *TwilioService) SendText(ctx context.Context, to, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendText validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// SendDocument publishes the file to the object store and sends its URL.
func (s *TwilioService) SendDocument(ctx context.Context, to, filePath, filename, caption string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if s.uploader == nil {
		return fmt.Errorf("document delivery requires an object store uploader")
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendDocument validation error", "error", err, "to", to)
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	key := path.Join("reports", canonicalTo, filename)
	mediaURL, err := s.uploader.Upload(ctx, key, data, "application/pdf")
	if err != nil {
		return fmt.Errorf("publish document: %w", err)
	}
	slog.Debug("TwilioService document published", "to", canonicalTo, "url", mediaURL)

	return s.client.SendMediaMessage(ctx, canonicalTo, mediaURL, caption)
}

// Stop marks the service stopped; subsequent sends fail fast.
func (s *TwilioService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("TwilioService stopped")
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
