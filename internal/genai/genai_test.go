package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/healthbook/healthbook/internal/models"
)

// mockAPI is a scriptable stand-in for the OpenAI SDK.
type mockAPI struct {
	chatResp      openai.ChatCompletionResponse
	chatErr       error
	lastChatReq   openai.ChatCompletionRequest
	embedResp     openai.EmbeddingResponse
	embedErr      error
	transcription openai.AudioResponse
	transcribeErr error
}

func (m *mockAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastChatReq = req
	return m.chatResp, m.chatErr
}

func (m *mockAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return m.embedResp, m.embedErr
}

func (m *mockAPI) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	return m.transcription, m.transcribeErr
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClient_Chat(t *testing.T) {
	mock := &mockAPI{chatResp: chatResponse("Take rest and stay hydrated.")}
	client := newClientWithAPI(mock)

	got, err := client.Chat(context.Background(), "system", "user", ReplyTokenBudget)
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if got != "Take rest and stay hydrated." {
		t.Errorf("unexpected completion: %q", got)
	}
	if mock.lastChatReq.MaxTokens != ReplyTokenBudget {
		t.Errorf("expected MaxTokens %d, got %d", ReplyTokenBudget, mock.lastChatReq.MaxTokens)
	}
	if len(mock.lastChatReq.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(mock.lastChatReq.Messages))
	}
	if mock.lastChatReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("expected first message role system, got %s", mock.lastChatReq.Messages[0].Role)
	}
}

func TestClient_Chat_NoChoices(t *testing.T) {
	mock := &mockAPI{chatResp: openai.ChatCompletionResponse{}}
	client := newClientWithAPI(mock)

	if _, err := client.Chat(context.Background(), "s", "u", 10); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestClient_Chat_APIError(t *testing.T) {
	mock := &mockAPI{chatErr: errors.New("rate limited")}
	client := newClientWithAPI(mock)

	if _, err := client.Chat(context.Background(), "s", "u", 10); err == nil {
		t.Fatal("expected propagated API error")
	}
}

func TestClient_ChatJSON_SetsResponseFormat(t *testing.T) {
	mock := &mockAPI{chatResp: chatResponse(`{"symptoms":[]}`)}
	client := newClientWithAPI(mock)

	if _, err := client.ChatJSON(context.Background(), "s", "u", ExtractionTokenBudget); err != nil {
		t.Fatalf("ChatJSON returned error: %v", err)
	}
	if mock.lastChatReq.ResponseFormat == nil ||
		mock.lastChatReq.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Error("expected JSON object response format")
	}
}

func TestClient_AnalyzeImage_BuildsVisionRequest(t *testing.T) {
	mock := &mockAPI{chatResp: chatResponse("Mild swelling on the left ankle.")}
	client := newClientWithAPI(mock)

	got, err := client.AnalyzeImage(context.Background(), "describe", "https://example.com/x.jpg")
	if err != nil {
		t.Fatalf("AnalyzeImage returned error: %v", err)
	}
	if !strings.Contains(got, "swelling") {
		t.Errorf("unexpected analysis: %q", got)
	}
	parts := mock.lastChatReq.Messages[0].MultiContent
	if len(parts) != 2 {
		t.Fatalf("expected text+image parts, got %d", len(parts))
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.URL != "https://example.com/x.jpg" {
		t.Error("expected image URL part to carry the image URL")
	}
}

func TestClient_Embed(t *testing.T) {
	embedding := make([]float32, models.EmbeddingDimensions)
	embedding[0] = 0.5
	mock := &mockAPI{embedResp: openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: embedding}},
	}}
	client := newClientWithAPI(mock)

	got, err := client.Embed(context.Background(), "knee pain")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(got) != models.EmbeddingDimensions {
		t.Errorf("expected %d dimensions, got %d", models.EmbeddingDimensions, len(got))
	}
}

func TestClient_Embed_DimensionMismatch(t *testing.T) {
	mock := &mockAPI{embedResp: openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: make([]float32, 64)}},
	}}
	client := newClientWithAPI(mock)

	if _, err := client.Embed(context.Background(), "text"); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestClient_Embed_EmptyResponse(t *testing.T) {
	mock := &mockAPI{embedResp: openai.EmbeddingResponse{}}
	client := newClientWithAPI(mock)

	if _, err := client.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding response")
	}
}

func TestClient_Transcribe(t *testing.T) {
	mock := &mockAPI{transcription: openai.AudioResponse{Text: "my back hurts"}}
	client := newClientWithAPI(mock)

	got, err := client.Transcribe(context.Background(), "/tmp/voice.ogg")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if got != "my back hurts" {
		t.Errorf("unexpected transcript: %q", got)
	}
}

func TestClient_Dimensions(t *testing.T) {
	client := newClientWithAPI(&mockAPI{})
	if client.Dimensions() != models.EmbeddingDimensions {
		t.Errorf("expected %d, got %d", models.EmbeddingDimensions, client.Dimensions())
	}
}
