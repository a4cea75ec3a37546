// Package models defines the core data structures for HealthBook.
//
// It includes types for inbound webhook messages, extracted medical context,
// stored vector entries, and conversation turns, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageKind identifies the payload type of an inbound WhatsApp message.
type MessageKind string

const (
	// MessageKindText is a plain text message.
	MessageKindText MessageKind = "text"
	// MessageKindImage is an image message carrying a media ID.
	MessageKindImage MessageKind = "image"
	// MessageKindAudio is a voice note carrying a media ID.
	MessageKindAudio MessageKind = "audio"
)

// EmbeddingDimensions is the fixed dimension of every embedding vector in the
// system. The vector store schema and the embedding model request must both
// use this value; a mismatch is a fatal configuration error at startup.
const EmbeddingDimensions = 512

// DefaultMemoryWindow is the number of recent conversation turns included in
// the prompt for a general text exchange.
const DefaultMemoryWindow = 5

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient      = errors.New("recipient cannot be empty")
	ErrInvalidMessageKind  = errors.New("invalid message kind")
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrDimensionMismatch   = errors.New("embedding dimension does not match store dimension")
	ErrNoMedicalHistory    = errors.New("no medical history found")
	ErrEmptyMediaID        = errors.New("media ID cannot be empty")
	ErrTranscriptionFailed = errors.New("audio transcription failed")
)

// IsValidMessageKind checks if the given message kind is supported.
func IsValidMessageKind(k MessageKind) bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindAudio:
		return true
	default:
		return false
	}
}

// IncomingMessage is a normalized inbound message event handed to the
// orchestrator. Exactly one of Text or MediaID is meaningful depending on Kind.
type IncomingMessage struct {
	UserID    string      `json:"user_id"` // canonical phone number of the sender
	Kind      MessageKind `json:"kind"`
	MessageID string      `json:"message_id"`
	Text      string      `json:"text,omitempty"`
	MediaID   string      `json:"media_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Validate performs validation on an IncomingMessage.
func (m *IncomingMessage) Validate() error {
	if m.UserID == "" {
		return ErrEmptyUserID
	}
	if !IsValidMessageKind(m.Kind) {
		return ErrInvalidMessageKind
	}
	if (m.Kind == MessageKindImage || m.Kind == MessageKindAudio) && m.MediaID == "" {
		return ErrEmptyMediaID
	}
	return nil
}

// TurnRole identifies the speaker of a conversation turn.
type TurnRole string

const (
	// TurnRoleUser marks a turn spoken by the patient.
	TurnRoleUser TurnRole = "user"
	// TurnRoleAssistant marks a turn spoken by the assistant.
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is a single conversation exchange stored in rolling memory.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MedicalContext is the structured record extracted from one user message.
// The collection fields are always non-nil, possibly empty; ImageURL is set
// only when the message carried an image.
type MedicalContext struct {
	Conditions  []string `json:"conditions"`
	Symptoms    []string `json:"symptoms"`
	Medications []string `json:"medications"`
	Incidents   []string `json:"incidents"`
	BodyParts   []string `json:"body_parts"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// EmptyMedicalContext returns the canonical empty record with all collection
// fields present and empty. Extraction falls back to this on any failure.
func EmptyMedicalContext() MedicalContext {
	return MedicalContext{
		Conditions:  []string{},
		Symptoms:    []string{},
		Medications: []string{},
		Incidents:   []string{},
		BodyParts:   []string{},
	}
}

// IsEmpty reports whether no medical information was extracted.
func (c MedicalContext) IsEmpty() bool {
	return len(c.Conditions) == 0 && len(c.Symptoms) == 0 &&
		len(c.Medications) == 0 && len(c.Incidents) == 0 &&
		len(c.BodyParts) == 0 && c.ImageURL == ""
}

// HistoryEvent is one entry of the chronological timeline in a medical report.
type HistoryEvent struct {
	Date    time.Time `json:"date"`
	Content string    `json:"content"`
	Type    string    `json:"type"`
}

// MedicalHistory aggregates all stored entries for one user into the report
// input shape: deduplicated category lists plus a chronological event list.
type MedicalHistory struct {
	UserID      string         `json:"user_id"`
	Conditions  []string       `json:"conditions"`
	Symptoms    []string       `json:"symptoms"`
	Medications []string       `json:"medications"`
	Incidents   []string       `json:"incidents"`
	BodyParts   []string       `json:"body_parts"`
	Events      []HistoryEvent `json:"events"`
}

// EmergencyRecord captures a handled emergency trigger.
type EmergencyRecord struct {
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
