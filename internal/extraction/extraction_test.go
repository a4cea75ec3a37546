package extraction

import (
	"context"
	"errors"
	"testing"
)

// mockChatter returns a scripted JSON-mode response.
type mockChatter struct {
	response string
	err      error
	calls    int
}

func (m *mockChatter) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	m.calls++
	return m.response, m.err
}

func TestExtract_ValidResponse(t *testing.T) {
	mock := &mockChatter{response: `{
		"conditions": ["migraine"],
		"symptoms": ["headache", "nausea"],
		"medications": ["ibuprofen"],
		"incidents": [],
		"body_parts": ["head"]
	}`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "I have a migraine and took ibuprofen", "")
	if got.IsEmpty() {
		t.Fatal("expected populated record")
	}
	if len(got.Symptoms) != 2 || got.Symptoms[0] != "headache" {
		t.Errorf("unexpected symptoms: %v", got.Symptoms)
	}
	if len(got.Conditions) != 1 || got.Conditions[0] != "migraine" {
		t.Errorf("unexpected conditions: %v", got.Conditions)
	}
	if got.Incidents == nil || len(got.Incidents) != 0 {
		t.Errorf("expected empty non-nil incidents, got %v", got.Incidents)
	}
}

func TestExtract_AttachesImageURL(t *testing.T) {
	mock := &mockChatter{response: `{"symptoms": ["swelling"]}`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "visible swelling", "https://example.com/img.jpg")
	if got.ImageURL != "https://example.com/img.jpg" {
		t.Errorf("expected image URL on record, got %q", got.ImageURL)
	}
}

func TestExtract_FallsClosedOnMalformedJSON(t *testing.T) {
	mock := &mockChatter{response: `{"symptoms": ["headache"`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "headache", "")
	if !got.IsEmpty() {
		t.Errorf("expected empty record for malformed JSON, got %+v", got)
	}
}

func TestExtract_FallsClosedOnSchemaViolation(t *testing.T) {
	// symptoms must be an array of strings, not a string.
	mock := &mockChatter{response: `{"symptoms": "headache"}`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "headache", "")
	if !got.IsEmpty() {
		t.Errorf("expected empty record for schema violation, got %+v", got)
	}
}

func TestExtract_FallsClosedOnInferenceError(t *testing.T) {
	mock := &mockChatter{err: errors.New("provider unavailable")}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "headache", "")
	if !got.IsEmpty() {
		t.Errorf("expected empty record on inference error, got %+v", got)
	}
}

func TestExtract_SkipsBlankText(t *testing.T) {
	mock := &mockChatter{response: `{"symptoms": ["x"]}`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "   ", "")
	if !got.IsEmpty() {
		t.Errorf("expected empty record for blank text, got %+v", got)
	}
	if mock.calls != 0 {
		t.Errorf("expected no inference call for blank text, got %d", mock.calls)
	}
}

func TestExtract_IgnoresUnknownKeys(t *testing.T) {
	mock := &mockChatter{response: `{"symptoms": ["cough"], "commentary": "extracted one symptom"}`}
	e := newExtractorWithChatter(mock)

	got := e.Extract(context.Background(), "I have a cough", "")
	if len(got.Symptoms) != 1 || got.Symptoms[0] != "cough" {
		t.Errorf("expected symptom despite extra keys, got %+v", got)
	}
}
