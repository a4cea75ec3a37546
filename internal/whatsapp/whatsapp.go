// Package whatsapp wraps the WhatsApp Business Cloud (Graph) API for HealthBook.
//
// It provides outbound text and document messaging, media retrieval for
// inbound image/audio messages, and the webhook payload types delivered by
// Meta. All calls carry a bearer credential and a bounded HTTP timeout.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

// DefaultGraphBaseURL is the Meta Graph API endpoint used unless overridden.
const DefaultGraphBaseURL = "https://graph.facebook.com/v21.0"

// DefaultHTTPTimeout bounds every Graph API call. The provider retries
// webhook delivery, not our outbound sends, so a hung send must not stall
// unrelated processing.
const DefaultHTTPTimeout = 30 * time.Second

// Sender is the minimal outbound interface used by the messaging layer.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendDocument(ctx context.Context, to, path, filename, caption string) error
}

// MediaFetcher retrieves inbound media content by Graph media ID.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// Opts holds configuration options for the Cloud API client.
type Opts struct {
	Token         string // WhatsApp bearer token
	PhoneNumberID string // sending phone number ID
	BaseURL       string
	HTTPClient    *http.Client
}

// Option defines a configuration option for the Cloud API client.
type Option func(*Opts)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPhoneNumberID sets the sending phone number ID.
func WithPhoneNumberID(id string) Option {
	return func(o *Opts) { o.PhoneNumberID = id }
}

// WithBaseURL overrides the Graph API base URL (used in tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to the WhatsApp Business Cloud API.
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	http          *http.Client
}

// NewClient creates a Cloud API client. Token and phone number ID fall back
// to the WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("WHATSAPP_TOKEN")
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	slog.Debug("WhatsApp client config loaded",
		"token_set", cfg.Token != "",
		"phone_number_id_set", cfg.PhoneNumberID != "")
	if cfg.Token == "" {
		return nil, fmt.Errorf("WhatsApp token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("WhatsApp phone number ID must be provided")
	}
	return &Client{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
		http:          cfg.HTTPClient,
	}, nil
}

// sendPayload is the Graph /messages request body for text and document sends.
type sendPayload struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Document         *documentBody `json:"document,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type documentBody struct {
	ID       string `json:"id"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SendText sends a plain text message to a recipient phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := sendPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	}
	if err := c.postJSON(ctx, c.messagesURL(), payload); err != nil {
		slog.Error("WhatsApp SendText failed", "error", err, "to", to)
		return fmt.Errorf("send text: %w", err)
	}
	slog.Info("WhatsApp text message sent", "to", to, "body_length", len(body))
	return nil
}

// SendDocument delivers a local file to a recipient. The Cloud API requires a
// two-step flow: upload the file to /media, then send a document message
// referencing the returned media ID.
func (c *Client) SendDocument(ctx context.Context, to, path, filename, caption string) error {
	mediaID, err := c.uploadMedia(ctx, path, "application/pdf")
	if err != nil {
		slog.Error("WhatsApp document upload failed", "error", err, "to", to, "path", path)
		return fmt.Errorf("upload document: %w", err)
	}
	slog.Debug("WhatsApp document uploaded", "media_id", mediaID, "to", to)

	payload := sendPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "document",
		Document:         &documentBody{ID: mediaID, Caption: caption, Filename: filename},
	}
	if err := c.postJSON(ctx, c.messagesURL(), payload); err != nil {
		slog.Error("WhatsApp SendDocument failed", "error", err, "to", to, "media_id", mediaID)
		return fmt.Errorf("send document: %w", err)
	}
	slog.Info("WhatsApp document sent", "to", to, "filename", filename)
	return nil
}

// uploadMedia uploads a file via multipart form and returns the media ID.
func (c *Client) uploadMedia(ctx context.Context, path, contentType string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.pdf")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy media content: %w", err)
	}
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := mw.WriteField("type", contentType); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media upload returned %d: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if uploadResp.ID == "" {
		return "", fmt.Errorf("no media ID in upload response")
	}
	return uploadResp.ID, nil
}

// GetMediaURL resolves a media ID to its ephemeral download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("media metadata returned %d: %s", resp.StatusCode, string(respBody))
	}

	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return "", fmt.Errorf("media URL not found in response")
	}
	return meta.URL, nil
}

// DownloadMedia fetches media content by ID. It returns the raw bytes and the
// content type reported by the media host.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	mediaURL, err := c.GetMediaURL(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", err
	}
	// The media host requires the same bearer credential as the Graph API.
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("media download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read media body: %w", err)
	}
	slog.Debug("WhatsApp media downloaded", "media_id", mediaID, "bytes", len(data))
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
}

// postJSON issues a bearer-authenticated JSON POST and fails on non-2xx.
func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
