// Package assistant is the dispatch/orchestrator for inbound messages.
//
// It receives normalized webhook events, routes them by message kind and
// keyword, and drives the retrieval-augmented response pipeline: conversation
// memory, structured context extraction, per-user vector storage and
// retrieval, and the bounded inference calls that produce replies. Exactly
// one outbound reply (or a fixed apology) leaves per inbound message; a
// message is never silently dropped.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/healthbook/healthbook/internal/genai"
	"github.com/healthbook/healthbook/internal/memory"
	"github.com/healthbook/healthbook/internal/messaging"
	"github.com/healthbook/healthbook/internal/models"
	"github.com/healthbook/healthbook/internal/report"
	"github.com/healthbook/healthbook/internal/vectorstore"
)

// reportKeywords trigger the report path on substring match.
var reportKeywords = []string{"report", "history", "summary"}

// emergencyPhrases trigger the emergency path on exact, case-insensitive match.
var emergencyPhrases = map[string]struct{}{
	"sos":       {},
	"emergency": {},
	"help":      {},
}

// topKSimilarCases is how many retrieved historical cases feed the prompt.
const topKSimilarCases = 3

// DefaultWorkers bounds concurrent inference/embedding calls across all users.
const DefaultWorkers = 8

// inference is the subset of the GenAI client used by the orchestrator.
type inference interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
	AnalyzeImage(ctx context.Context, prompt, imageURL string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Transcribe(ctx context.Context, filePath string) (string, error)
}

// contextExtractor produces structured medical records from free text.
type contextExtractor interface {
	Extract(ctx context.Context, text, imageURL string) models.MedicalContext
}

// mediaFetcher retrieves inbound media content by reference.
type mediaFetcher interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// objectUploader publishes binary blobs and returns their URL.
type objectUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// reportGenerator renders a medical history into a document file.
type reportGenerator interface {
	Generate(history models.MedicalHistory) (string, error)
}

// emergencyRecorder records emergency triggers without touching the LLM.
type emergencyRecorder interface {
	HandleEmergency(ctx context.Context, userID string) models.EmergencyRecord
}

// Assistant orchestrates the full inbound message pipeline.
type Assistant struct {
	msg       messaging.Service
	ai        inference
	extractor contextExtractor
	store     vectorstore.Store
	memory    memory.Manager
	media     mediaFetcher
	uploader  objectUploader
	reports   reportGenerator
	emergency emergencyRecorder

	memoryWindow int
	locks        *userLocks
	workers      *semaphore.Weighted
	tempDir      string
	now          func() time.Time
}

// Opts holds configuration options for the Assistant.
type Opts struct {
	MemoryWindow int
	Workers      int
	TempDir      string
}

// Option defines a configuration option for the Assistant.
type Option func(*Opts)

// WithMemoryWindow sets the number of recent turns included in prompts.
func WithMemoryWindow(n int) Option {
	return func(o *Opts) { o.MemoryWindow = n }
}

// WithWorkers bounds concurrent inference calls; further messages queue on
// the semaphore, giving explicit backpressure instead of unbounded fan-out.
func WithWorkers(n int) Option {
	return func(o *Opts) { o.Workers = n }
}

// WithTempDir sets where audio temp files are written.
func WithTempDir(dir string) Option {
	return func(o *Opts) { o.TempDir = dir }
}

// Deps collects the Assistant's collaborators.
type Deps struct {
	Messaging messaging.Service
	AI        inference
	Extractor contextExtractor
	Store     vectorstore.Store
	Memory    memory.Manager
	Media     mediaFetcher
	Uploader  objectUploader
	Reports   reportGenerator
	Emergency emergencyRecorder
}

// New creates an Assistant from its collaborators.
func New(deps Deps, opts ...Option) *Assistant {
	cfg := Opts{
		MemoryWindow: models.DefaultMemoryWindow,
		Workers:      DefaultWorkers,
		TempDir:      os.TempDir(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MemoryWindow <= 0 {
		cfg.MemoryWindow = models.DefaultMemoryWindow
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Assistant{
		msg:          deps.Messaging,
		ai:           deps.AI,
		extractor:    deps.Extractor,
		store:        deps.Store,
		memory:       deps.Memory,
		media:        deps.Media,
		uploader:     deps.Uploader,
		reports:      deps.Reports,
		emergency:    deps.Emergency,
		memoryWindow: cfg.MemoryWindow,
		locks:        newUserLocks(),
		workers:      semaphore.NewWeighted(int64(cfg.Workers)),
		tempDir:      cfg.TempDir,
		now:          time.Now,
	}
}

// HandleMessage processes one normalized inbound message. It always resolves
// to exactly one outbound send: the reply on success, a fixed apology on
// failure. The returned error is for logging and metrics only; callers must
// still acknowledge the webhook.
func (a *Assistant) HandleMessage(ctx context.Context, msg models.IncomingMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid inbound message: %w", err)
	}
	slog.Debug("assistant handling message", "user_id", msg.UserID, "kind", msg.Kind, "message_id", msg.MessageID)

	switch msg.Kind {
	case models.MessageKindText:
		return a.handleText(ctx, msg.UserID, msg.Text)
	case models.MessageKindImage:
		return a.handleImage(ctx, msg.UserID, msg.MediaID)
	case models.MessageKindAudio:
		return a.handleAudio(ctx, msg.UserID, msg.MediaID, msg.MessageID)
	default:
		return models.ErrInvalidMessageKind
	}
}

// handleText routes a text message through the keyword policy, first match
// wins: control phrase, report request, emergency, then general conversation.
func (a *Assistant) handleText(ctx context.Context, userID, text string) error {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	switch {
	case lowered == models.ControlPhraseClearHistory:
		return a.handleClearHistory(ctx, userID)
	case containsAny(lowered, reportKeywords):
		return a.handleReportRequest(ctx, userID)
	case isEmergencyPhrase(lowered):
		return a.handleEmergency(ctx, userID)
	default:
		return a.handleGeneralText(ctx, userID, trimmed)
	}
}

// handleClearHistory wipes both the conversation memory and the vector store
// partition for the user. Scoped strictly to the requesting user.
func (a *Assistant) handleClearHistory(ctx context.Context, userID string) error {
	unlock := a.locks.Lock(userID)
	defer unlock()

	if err := a.memory.Clear(ctx, userID); err != nil {
		slog.Error("failed to clear conversation memory", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyHistoryClearFailed)
		return err
	}
	if err := a.store.DeleteUser(ctx, userID); err != nil {
		slog.Error("failed to clear vector entries", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyHistoryClearFailed)
		return err
	}
	slog.Info("chat history cleared", "user_id", userID)
	a.send(ctx, userID, models.ReplyHistoryCleared)
	return nil
}

// handleEmergency records the trigger and sends the fixed reassurance reply.
// This path must succeed with the inference adapter unreachable, so it never
// touches the GenAI client.
func (a *Assistant) handleEmergency(ctx context.Context, userID string) error {
	a.emergency.HandleEmergency(ctx, userID)
	a.send(ctx, userID, models.ReplyEmergency)
	return nil
}

// handleReportRequest collects the user's records, renders the PDF, and
// delivers it. The temp file is removed on every path. Internal errors never
// reach the user; they see either the report, the no-history notice, or the
// fixed failure message.
func (a *Assistant) handleReportRequest(ctx context.Context, userID string) error {
	entries, err := a.store.CollectAll(ctx, userID)
	if err != nil {
		slog.Error("failed to collect medical history", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyReportFailed)
		return err
	}
	if len(entries) == 0 {
		slog.Info("report requested with no medical history", "user_id", userID)
		a.send(ctx, userID, models.ReplyNoHistory)
		return nil
	}

	history := report.BuildHistory(userID, entries)
	path, err := a.reports.Generate(history)
	if err != nil {
		slog.Error("failed to generate medical report", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyReportFailed)
		return err
	}
	defer func() {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("failed to remove report temp file", "error", removeErr, "path", path)
		}
	}()

	a.send(ctx, userID, models.ReplyReportSending)
	if err := a.msg.SendDocument(ctx, userID, path, reportFilename, reportCaption); err != nil {
		slog.Error("failed to deliver medical report", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyReportFailed)
		return err
	}
	slog.Info("medical report delivered", "user_id", userID, "records", len(entries))
	return nil
}

// handleGeneralText runs the retrieval-augmented conversation pipeline.
func (a *Assistant) handleGeneralText(ctx context.Context, userID, text string) error {
	unlock := a.locks.Lock(userID)
	defer unlock()

	if err := a.acquireWorker(ctx); err != nil {
		a.send(ctx, userID, models.ReplyGenericApology)
		return err
	}
	defer a.workers.Release(1)

	if err := a.memory.Append(ctx, userID, models.Turn{Role: models.TurnRoleUser, Content: text, Timestamp: a.now()}); err != nil {
		slog.Error("failed to append user turn", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyGenericApology)
		return err
	}
	turns, err := a.memory.Recent(ctx, userID, a.memoryWindow)
	if err != nil {
		slog.Error("failed to read conversation memory", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyGenericApology)
		return err
	}
	chatHistory := renderTurns(turns)

	casesText, err := a.enrich(ctx, userID, text, chatHistory, "")
	if err != nil {
		a.send(ctx, userID, models.ReplyGenericApology)
		return err
	}

	userPrompt := fmt.Sprintf("Chat History: %s\n\nCurrent Context: %s", chatHistory, currentContext(text, casesText))
	reply, err := a.ai.Chat(ctx, replySystemPrompt, userPrompt, genai.ReplyTokenBudget)
	if err != nil {
		slog.Error("inference call failed", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyGenericApology)
		return err
	}

	if err := a.memory.Append(ctx, userID, models.Turn{Role: models.TurnRoleAssistant, Content: reply, Timestamp: a.now()}); err != nil {
		// The reply is still worth delivering; memory just loses this turn.
		slog.Error("failed to append assistant turn", "error", err, "user_id", userID)
	}
	a.send(ctx, userID, reply)
	return nil
}

// handleImage fetches the image, publishes it to the object store, analyzes
// it with the vision model, and replies with a bounded completion. The
// analysis text flows through the same extraction and storage pipeline as a
// text message so the image becomes part of the user's medical history.
func (a *Assistant) handleImage(ctx context.Context, userID, mediaID string) error {
	if err := a.acquireWorker(ctx); err != nil {
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}
	defer a.workers.Release(1)

	data, contentType, err := a.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		slog.Error("failed to download image media", "error", err, "user_id", userID, "media_id", mediaID)
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	key := fmt.Sprintf("health_images/%s/%s.jpg", userID, a.now().Format("20060102_150405"))
	imageURL, err := a.uploader.Upload(ctx, key, data, contentType)
	if err != nil {
		slog.Error("failed to upload image", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}

	analysis, err := a.ai.AnalyzeImage(ctx, imageAnalysisPrompt, imageURL)
	if err != nil {
		slog.Error("image analysis failed", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}

	casesText, err := a.enrich(ctx, userID, analysis, "", imageURL)
	if err != nil {
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}

	reply, err := a.ai.Chat(ctx, replySystemPrompt, currentContext(analysis, casesText), genai.ImageReplyTokenBudget)
	if err != nil {
		slog.Error("inference call failed", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyImageApology)
		return err
	}
	a.send(ctx, userID, reply)
	return nil
}

// handleAudio transcribes the voice note and feeds the transcript through
// the general conversation pipeline. The temp file is removed on all paths.
func (a *Assistant) handleAudio(ctx context.Context, userID, mediaID, messageID string) error {
	data, _, err := a.media.DownloadMedia(ctx, mediaID)
	if err != nil {
		slog.Error("failed to download audio media", "error", err, "user_id", userID, "media_id", mediaID)
		a.send(ctx, userID, models.ReplyAudioApology)
		return err
	}

	// WhatsApp voice notes arrive as OGG/Opus.
	tempPath := filepath.Join(a.tempDir, fmt.Sprintf("voice_%s.ogg", messageID))
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		slog.Error("failed to write audio temp file", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyAudioApology)
		return err
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("failed to remove audio temp file", "error", removeErr, "path", tempPath)
		}
	}()

	transcript, err := a.ai.Transcribe(ctx, tempPath)
	if err != nil {
		slog.Error("audio transcription failed", "error", err, "user_id", userID)
		a.send(ctx, userID, models.ReplyAudioApology)
		return fmt.Errorf("%w: %v", models.ErrTranscriptionFailed, err)
	}
	slog.Debug("audio transcribed", "user_id", userID, "transcript_length", len(transcript))

	return a.handleGeneralText(ctx, userID, transcript)
}

// enrich runs extraction, embedding, storage, and retrieval for one turn.
// When extraction finds nothing medical the turn is not stored and no cases
// are retrieved; the reply then leans on chat history alone.
func (a *Assistant) enrich(ctx context.Context, userID, text, chatHistory, imageURL string) (string, error) {
	record := a.extractor.Extract(ctx, text, imageURL)
	if record.IsEmpty() {
		slog.Debug("no medical context extracted, skipping retrieval", "user_id", userID)
		return "", nil
	}

	embeddingInput := text
	if chatHistory != "" {
		embeddingInput = text + "\nPrevious conversation:\n" + chatHistory
	}
	embedding, err := a.ai.Embed(ctx, embeddingInput)
	if err != nil {
		slog.Error("embedding call failed", "error", err, "user_id", userID)
		return "", err
	}

	entry := vectorstore.Entry{
		ID:        uuid.NewString(),
		Embedding: embedding,
		Metadata: vectorstore.Metadata{
			Content:     text,
			UserID:      userID,
			ImageURL:    imageURL,
			CreatedAt:   a.now(),
			Conditions:  record.Conditions,
			Symptoms:    record.Symptoms,
			Medications: record.Medications,
			Incidents:   record.Incidents,
			BodyParts:   record.BodyParts,
		},
	}
	if err := a.store.Upsert(ctx, entry); err != nil {
		slog.Error("vector upsert failed", "error", err, "user_id", userID)
		return "", err
	}

	matches, err := a.store.Query(ctx, embedding, topKSimilarCases, userID)
	if err != nil {
		slog.Error("vector query failed", "error", err, "user_id", userID)
		return "", err
	}
	return formatCases(matches), nil
}

// acquireWorker blocks until an inference worker slot is free or the context
// is done. This is the backpressure point for bursts of webhook deliveries.
func (a *Assistant) acquireWorker(ctx context.Context) error {
	if err := a.workers.Acquire(ctx, 1); err != nil {
		slog.Error("worker acquisition failed", "error", err)
		return fmt.Errorf("acquire worker: %w", err)
	}
	return nil
}

// send delivers a reply, logging rather than propagating failures: by the
// time a reply fails there is no further channel to apologize on.
func (a *Assistant) send(ctx context.Context, userID, body string) {
	if err := a.msg.SendText(ctx, userID, body); err != nil {
		slog.Error("failed to send reply", "error", err, "user_id", userID)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func isEmergencyPhrase(s string) bool {
	_, ok := emergencyPhrases[s]
	return ok
}

// renderTurns flattens recent turns into prompt text.
func renderTurns(turns []models.Turn) string {
	if len(turns) == 0 {
		return "(no prior conversation)"
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// currentContext combines the user's message with retrieved similar cases.
func currentContext(text, casesText string) string {
	if casesText == "" {
		return text
	}
	return fmt.Sprintf("%s\n\nSimilar Cases:\n%s", text, casesText)
}

// formatCases renders retrieved matches for the prompt. Entries missing a
// user ID are skipped as an extra safety net on top of the store-side filter.
func formatCases(matches []vectorstore.Match) string {
	var b strings.Builder
	n := 0
	for _, m := range matches {
		if m.Metadata.UserID == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "\nCase %d:\n", n)
		fmt.Fprintf(&b, "- Content: %s\n", m.Metadata.Content)
		if len(m.Metadata.Conditions) > 0 {
			fmt.Fprintf(&b, "- Conditions: %s\n", strings.Join(m.Metadata.Conditions, ", "))
		}
		if len(m.Metadata.Medications) > 0 {
			fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(m.Metadata.Medications, ", "))
		}
		if len(m.Metadata.BodyParts) > 0 {
			fmt.Fprintf(&b, "- Body Parts: %s\n", strings.Join(m.Metadata.BodyParts, ", "))
		}
		fmt.Fprintf(&b, "- Relevance Score: %.2f\n", m.Score)
	}
	return b.String()
}
