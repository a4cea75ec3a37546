// Package messaging provides a pluggable message delivery abstraction.
//
// Two backends are available: the WhatsApp Business Cloud API (primary) and
// Twilio's WhatsApp messaging API (alternate). Both validate and canonicalize
// recipient phone numbers the same way.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/healthbook/healthbook/internal/models"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches everything that is not a digit; used to
// canonicalize recipient identifiers.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// MinPhoneNumberDigits is the minimum accepted canonical phone number length.
const MinPhoneNumberDigits = 6

// Service defines the outbound message delivery abstraction used by the
// orchestrator. Implementations must be safe for concurrent use.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a plain text message to a recipient.
	SendText(ctx context.Context, to, body string) error

	// SendDocument delivers a local file to a recipient with a caption.
	SendDocument(ctx context.Context, to, path, filename, caption string) error
}

// canonicalizeRecipient strips all non-numeric characters and validates the
// result has at least MinPhoneNumberDigits digits.
func canonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}
	if recipient != canonical {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
