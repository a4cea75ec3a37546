// Package api provides HTTP handlers and the main API server logic for HealthBook.
//
// It exposes the WhatsApp Cloud API webhook endpoints (subscription
// verification and inbound event delivery) plus a health probe. The webhook
// handler normalizes provider payloads into models.IncomingMessage and hands
// them to the assistant; delivery receipts and echo/reply contexts are
// dropped before they reach the pipeline.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/healthbook/healthbook/internal/models"
	"github.com/healthbook/healthbook/internal/util"
	"github.com/healthbook/healthbook/internal/whatsapp"
)

// DefaultAddr is the default address the API server binds to.
const DefaultAddr = ":8000"

// DefaultHandleTimeout bounds how long one webhook delivery may spend in the
// pipeline before the context is cancelled.
const DefaultHandleTimeout = 60 * time.Second

// messageHandler processes one normalized inbound message.
type messageHandler interface {
	HandleMessage(ctx context.Context, msg models.IncomingMessage) error
}

// Server is the HealthBook HTTP API server.
type Server struct {
	assistant     messageHandler
	addr          string
	verifyToken   string
	appSecret     string
	handleTimeout time.Duration
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (host:port).
	Addr string
	// VerifyToken is compared against hub.verify_token during subscription
	// verification.
	VerifyToken string
	// AppSecret, when set, enables X-Hub-Signature-256 validation of webhook
	// POST bodies. Empty disables validation.
	AppSecret string
	// HandleTimeout bounds per-message pipeline time.
	HandleTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAppSecret enables webhook signature validation with the given secret.
func WithAppSecret(secret string) Option {
	return func(o *Opts) { o.AppSecret = secret }
}

// WithHandleTimeout sets the per-message pipeline timeout.
func WithHandleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.HandleTimeout = d }
}

// NewServer creates an API server around the message handler. Options
// override environment variables WEBHOOK_VERIFY_TOKEN and WHATSAPP_APP_SECRET.
func NewServer(assistant messageHandler, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultAddr,
		VerifyToken:   util.GetEnv("WEBHOOK_VERIFY_TOKEN", ""),
		AppSecret:     util.GetEnv("WHATSAPP_APP_SECRET", ""),
		HandleTimeout: DefaultHandleTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		assistant:     assistant,
		addr:          cfg.Addr,
		verifyToken:   cfg.VerifyToken,
		appSecret:     cfg.AppSecret,
		handleTimeout: cfg.HandleTimeout,
	}
}

// Handler returns the server's HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the API server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("HealthBook API running", "addr", s.addr, "signature_validation", s.appSecret != "")
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// webhookHandler dispatches GET verification and POST event delivery.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyHandler(w, r)
	case http.MethodPost:
		s.eventHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyHandler answers the Cloud API subscription handshake: echo
// hub.challenge when the mode is subscribe and the token matches, 403
// otherwise.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		slog.Info("Server.verifyHandler: webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			slog.Error("Server.verifyHandler: failed to write challenge", "error", err)
		}
		return
	}
	slog.Warn("Server.verifyHandler: verification failed", "mode", mode)
	writeJSONResponse(w, http.StatusForbidden, models.Error("Verification failed"))
}

// eventHandler processes one webhook POST. Malformed or irrelevant payloads
// are acknowledged with 200 anyway so the provider does not retry them; only
// a bad signature is rejected.
func (s *Server) eventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Server.eventHandler: failed to read body", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	if s.appSecret != "" && !s.validSignature(r.Header.Get("X-Hub-Signature-256"), body) {
		slog.Warn("Server.eventHandler: invalid webhook signature")
		writeJSONResponse(w, http.StatusForbidden, models.Error("Invalid signature"))
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("Server.eventHandler: failed to decode payload", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	msg, ok := extractMessage(payload)
	if !ok {
		slog.Debug("Server.eventHandler: no actionable message in payload")
		writeJSONResponse(w, http.StatusOK, models.Success(nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.handleTimeout)
	defer cancel()
	if err := s.assistant.HandleMessage(ctx, msg); err != nil {
		// The assistant has already sent its apology; the provider still
		// gets a 200 so the message is not redelivered.
		slog.Error("Server.eventHandler: message handling failed", "error", err, "user_id", msg.UserID)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// validSignature checks the X-Hub-Signature-256 header against the HMAC of
// the raw body.
func (s *Server) validSignature(header string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}

// extractMessage normalizes the first actionable inbound message out of a
// webhook payload. Delivery receipts, reply contexts, and unsupported
// message types yield no message.
func extractMessage(payload whatsapp.WebhookPayload) (models.IncomingMessage, bool) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if value.HasStatuses() {
				slog.Debug("extractMessage: skipping delivery status notification")
				continue
			}
			for _, m := range value.Messages {
				if m.From == "" {
					continue
				}
				if m.Context != nil {
					slog.Debug("extractMessage: skipping message with reply context", "message_id", m.ID)
					continue
				}
				msg, ok := normalizeMessage(m)
				if !ok {
					continue
				}
				return msg, true
			}
		}
	}
	return models.IncomingMessage{}, false
}

// normalizeMessage maps a provider message onto the internal shape.
func normalizeMessage(m whatsapp.WebhookMessage) (models.IncomingMessage, bool) {
	ts, _ := strconv.ParseInt(m.Timestamp, 10, 64)
	msg := models.IncomingMessage{
		UserID:    m.From,
		MessageID: m.ID,
		Timestamp: ts,
	}
	switch m.Type {
	case "text":
		if m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
			return models.IncomingMessage{}, false
		}
		msg.Kind = models.MessageKindText
		msg.Text = m.Text.Body
	case "image":
		if m.Image == nil || m.Image.ID == "" {
			return models.IncomingMessage{}, false
		}
		msg.Kind = models.MessageKindImage
		msg.MediaID = m.Image.ID
	case "audio":
		if m.Audio == nil || m.Audio.ID == "" {
			return models.IncomingMessage{}, false
		}
		msg.Kind = models.MessageKindAudio
		msg.MediaID = m.Audio.ID
	default:
		slog.Debug("normalizeMessage: unsupported message type", "type", m.Type)
		return models.IncomingMessage{}, false
	}
	return msg, true
}
