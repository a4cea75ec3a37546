package whatsapp

// Webhook payload types for inbound Cloud API events. The provider posts one
// WebhookPayload per delivery; values carrying statuses are delivery receipts
// and must be skipped without side effects.

// WebhookPayload is the top-level POST body delivered by Meta.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups changes for one WhatsApp Business account.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange is a single field change notification.
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue carries either inbound messages or delivery statuses.
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         *WebhookMetadata `json:"metadata,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
	Status           string           `json:"status,omitempty"`
}

// WebhookMetadata identifies the receiving phone number.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WebhookMessage is one inbound user message.
type WebhookMessage struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *WebhookText    `json:"text,omitempty"`
	Image     *WebhookMedia   `json:"image,omitempty"`
	Audio     *WebhookMedia   `json:"audio,omitempty"`
	Context   *WebhookContext `json:"context,omitempty"`
}

// WebhookText carries the body of a text message.
type WebhookText struct {
	Body string `json:"body"`
}

// WebhookMedia carries the media reference of an image or audio message.
type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// WebhookContext is present on replies and forwarded messages.
type WebhookContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

// WebhookStatus is a delivery receipt (sent, delivered, read).
type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// HasStatuses reports whether the value is a delivery receipt notification.
func (v *WebhookValue) HasStatuses() bool {
	return len(v.Statuses) > 0 || v.Status != ""
}
