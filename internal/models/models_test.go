package models

import (
	"errors"
	"testing"
)

func TestIncomingMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     IncomingMessage
		wantErr error
	}{
		{
			name: "valid text message",
			msg:  IncomingMessage{UserID: "15550001", Kind: MessageKindText, Text: "hello"},
		},
		{
			name: "valid image message",
			msg:  IncomingMessage{UserID: "15550001", Kind: MessageKindImage, MediaID: "media-1"},
		},
		{
			name: "valid audio message",
			msg:  IncomingMessage{UserID: "15550001", Kind: MessageKindAudio, MediaID: "media-2"},
		},
		{
			name:    "missing user ID",
			msg:     IncomingMessage{Kind: MessageKindText, Text: "hello"},
			wantErr: ErrEmptyUserID,
		},
		{
			name:    "unknown kind",
			msg:     IncomingMessage{UserID: "15550001", Kind: MessageKind("video")},
			wantErr: ErrInvalidMessageKind,
		},
		{
			name:    "image without media ID",
			msg:     IncomingMessage{UserID: "15550001", Kind: MessageKindImage},
			wantErr: ErrEmptyMediaID,
		},
		{
			name:    "audio without media ID",
			msg:     IncomingMessage{UserID: "15550001", Kind: MessageKindAudio},
			wantErr: ErrEmptyMediaID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidMessageKind(t *testing.T) {
	for _, k := range []MessageKind{MessageKindText, MessageKindImage, MessageKindAudio} {
		if !IsValidMessageKind(k) {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if IsValidMessageKind(MessageKind("sticker")) {
		t.Error("expected sticker kind to be invalid")
	}
}

func TestEmptyMedicalContext(t *testing.T) {
	c := EmptyMedicalContext()
	if !c.IsEmpty() {
		t.Error("expected empty context to report IsEmpty")
	}
	// Collection fields must be present and empty rather than nil so the
	// record serializes with explicit arrays.
	if c.Conditions == nil || c.Symptoms == nil || c.Medications == nil || c.Incidents == nil || c.BodyParts == nil {
		t.Error("expected all collection fields to be non-nil")
	}
}

func TestMedicalContext_IsEmpty(t *testing.T) {
	c := EmptyMedicalContext()
	c.Symptoms = append(c.Symptoms, "headache")
	if c.IsEmpty() {
		t.Error("expected context with a symptom to be non-empty")
	}

	c = EmptyMedicalContext()
	c.ImageURL = "https://example.com/img.jpg"
	if c.IsEmpty() {
		t.Error("expected context with an image URL to be non-empty")
	}
}
