package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(
		WithToken("test-token"),
		WithPhoneNumberID("12345"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewClient(WithToken("tok")); err == nil {
		t.Fatal("expected error without phone number ID")
	}
}

func TestClient_SendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"messages":[{"id":"wamid.1"}]}`)
	}))

	if err := client.SendText(context.Background(), "15550001", "hello"); err != nil {
		t.Fatalf("SendText returned error: %v", err)
	}
	if gotPath != "/12345/messages" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotBody["to"] != "15550001" || gotBody["type"] != "text" {
		t.Errorf("unexpected payload: %v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]interface{})
	if text["body"] != "hello" {
		t.Errorf("unexpected text body: %v", text)
	}
}

func TestClient_SendText_GraphError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad token"}}`)
	}))

	if err := client.SendText(context.Background(), "15550001", "hello"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestClient_SendDocument_UploadsThenSends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	var mediaUploaded bool
	var sentDoc map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/12345/media":
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("expected multipart upload, got %s", r.Header.Get("Content-Type"))
			}
			mediaUploaded = true
			fmt.Fprint(w, `{"id":"media-42"}`)
		case "/12345/messages":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			sentDoc, _ = body["document"].(map[string]interface{})
			fmt.Fprint(w, `{"messages":[{"id":"wamid.2"}]}`)
		default:
			t.Errorf("unexpected request path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	if err := client.SendDocument(context.Background(), "15550001", path, "medical_report.pdf", "Here's your report"); err != nil {
		t.Fatalf("SendDocument returned error: %v", err)
	}
	if !mediaUploaded {
		t.Fatal("expected media upload before document send")
	}
	if sentDoc["id"] != "media-42" {
		t.Errorf("expected document to reference uploaded media ID, got %v", sentDoc)
	}
	if sentDoc["filename"] != "medical_report.pdf" {
		t.Errorf("unexpected filename: %v", sentDoc["filename"])
	}
}

func TestClient_DownloadMedia(t *testing.T) {
	content := []byte{0xFF, 0xD8, 0xFF}
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/media-7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"url":"%s/download/media-7","mime_type":"image/jpeg"}`, srvURL)
	})
	mux.HandleFunc("/download/media-7", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(content)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	client, err := NewClient(
		WithToken("test-token"),
		WithPhoneNumberID("12345"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	data, contentType, err := client.DownloadMedia(context.Background(), "media-7")
	if err != nil {
		t.Fatalf("DownloadMedia returned error: %v", err)
	}
	if len(data) != len(content) {
		t.Errorf("unexpected content length: %d", len(data))
	}
	if contentType != "image/jpeg" {
		t.Errorf("unexpected content type: %s", contentType)
	}
}

func TestWebhookPayload_Unmarshal(t *testing.T) {
	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "15550009", "phone_number_id": "12345"},
					"messages": [{
						"from": "15550001",
						"id": "wamid.abc",
						"timestamp": "1756700000",
						"type": "text",
						"text": {"body": "I have a headache"}
					}]
				}
			}]
		}]
	}`

	var p WebhookPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(p.Entry) != 1 || len(p.Entry[0].Changes) != 1 {
		t.Fatal("unexpected payload shape")
	}
	value := p.Entry[0].Changes[0].Value
	if value.HasStatuses() {
		t.Error("expected message payload, not statuses")
	}
	if len(value.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(value.Messages))
	}
	msg := value.Messages[0]
	if msg.From != "15550001" || msg.Type != "text" || msg.Text == nil || msg.Text.Body != "I have a headache" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestWebhookValue_HasStatuses(t *testing.T) {
	v := WebhookValue{Statuses: []WebhookStatus{{ID: "wamid.x", Status: "delivered"}}}
	if !v.HasStatuses() {
		t.Error("expected statuses to be detected")
	}
	v = WebhookValue{Status: "sent"}
	if !v.HasStatuses() {
		t.Error("expected bare status field to be detected")
	}
	v = WebhookValue{}
	if v.HasStatuses() {
		t.Error("expected empty value to have no statuses")
	}
}
