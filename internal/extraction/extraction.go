// Package extraction turns free-form patient text into a structured medical
// context record.
//
// A single JSON-mode inference call categorizes the text into five fixed
// collections. The model's output is parsed and validated against a strict
// JSON schema; any failure at any stage falls closed to the canonical empty
// record. Model output is only ever treated as data.
package extraction

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/healthbook/healthbook/internal/genai"
	"github.com/healthbook/healthbook/internal/models"
)

const extractionSystemPrompt = `You are a medical context analyzer. Extract and categorize medical information from the text into these categories:
- conditions: Any mentioned medical conditions
- symptoms: Reported symptoms or discomfort
- medications: Any medications mentioned
- incidents: Medical events or incidents
- body_parts: Mentioned body parts or areas
Respond only with a JSON object containing these categories, each as an array of strings.`

// contextSchema constrains the model response to exactly the five category
// arrays. additionalProperties stays open because models routinely add
// commentary keys; unknown keys are ignored rather than failing the record.
const contextSchema = `{
	"type": "object",
	"properties": {
		"conditions":  {"type": "array", "items": {"type": "string"}},
		"symptoms":    {"type": "array", "items": {"type": "string"}},
		"medications": {"type": "array", "items": {"type": "string"}},
		"incidents":   {"type": "array", "items": {"type": "string"}},
		"body_parts":  {"type": "array", "items": {"type": "string"}}
	}
}`

// jsonChatter is the single GenAI capability the extractor needs.
type jsonChatter interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Extractor produces MedicalContext records from user messages.
type Extractor struct {
	ai     jsonChatter
	schema *jsonschema.Schema
}

// NewExtractor creates an Extractor backed by the given GenAI client.
func NewExtractor(ai *genai.Client) *Extractor {
	return newExtractorWithChatter(ai)
}

func newExtractorWithChatter(ai jsonChatter) *Extractor {
	schema, err := jsonschema.CompileString("medical_context.json", contextSchema)
	if err != nil {
		// The schema is a compile-time constant; failing here is a bug.
		panic("extraction: invalid context schema: " + err.Error())
	}
	return &Extractor{ai: ai, schema: schema}
}

// Extract categorizes text into the five fixed medical categories. It never
// returns an error: on any call, parse, or validation failure it logs the
// cause and returns the canonical empty record. When imageURL is non-empty it
// is attached to the returned record.
func (e *Extractor) Extract(ctx context.Context, text, imageURL string) models.MedicalContext {
	record := models.EmptyMedicalContext()
	record.ImageURL = imageURL

	if strings.TrimSpace(text) == "" {
		return record
	}

	raw, err := e.ai.ChatJSON(ctx, extractionSystemPrompt, text, genai.ExtractionTokenBudget)
	if err != nil {
		slog.Error("extraction inference call failed", "error", err)
		return record
	}

	parsed, err := e.parseAndValidate(raw)
	if err != nil {
		slog.Error("extraction response rejected", "error", err, "response_length", len(raw))
		return record
	}

	record.Conditions = append(record.Conditions, parsed.Conditions...)
	record.Symptoms = append(record.Symptoms, parsed.Symptoms...)
	record.Medications = append(record.Medications, parsed.Medications...)
	record.Incidents = append(record.Incidents, parsed.Incidents...)
	record.BodyParts = append(record.BodyParts, parsed.BodyParts...)
	slog.Debug("medical context extracted",
		"conditions", len(record.Conditions),
		"symptoms", len(record.Symptoms),
		"medications", len(record.Medications),
		"incidents", len(record.Incidents),
		"body_parts", len(record.BodyParts))
	return record
}

// parseAndValidate unmarshals the model output and checks it against the
// context schema before mapping it into a typed record.
func (e *Extractor) parseAndValidate(raw string) (models.MedicalContext, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return models.MedicalContext{}, err
	}
	if err := e.schema.Validate(generic); err != nil {
		return models.MedicalContext{}, err
	}

	var parsed struct {
		Conditions  []string `json:"conditions"`
		Symptoms    []string `json:"symptoms"`
		Medications []string `json:"medications"`
		Incidents   []string `json:"incidents"`
		BodyParts   []string `json:"body_parts"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.MedicalContext{}, err
	}
	return models.MedicalContext{
		Conditions:  parsed.Conditions,
		Symptoms:    parsed.Symptoms,
		Medications: parsed.Medications,
		Incidents:   parsed.Incidents,
		BodyParts:   parsed.BodyParts,
	}, nil
}
