package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/set-night/apexinspect/internal/domain"
	"github.com/shopspring/decimal"
)

// NoContent is returned as the assistant text when the endpoint answers
// without content in any known shape.
const NoContent = "Error: No content returned."

type InferenceConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// InferenceService performs one request/response cycle against an
// OpenAI-compatible multimodal chat endpoint.
type InferenceService struct {
	cfg        InferenceConfig
	httpClient *http.Client
}

func NewInferenceService(cfg InferenceConfig) *InferenceService {
	return &InferenceService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type ChatInput struct {
	SystemPrompt string
	History      []domain.Message
	Text         string
	Image        []byte
}

type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// chatResponse covers both response shapes seen from the endpoint.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Content *string `json:"content"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// content picks the first shape present: choices[0].message.content, then a
// top-level content field, then the NoContent sentinel.
func (r *chatResponse) content() string {
	switch {
	case len(r.Choices) > 0 && r.Choices[0].Message.Content != nil:
		return *r.Choices[0].Message.Content
	case r.Content != nil:
		return *r.Content
	default:
		return NoContent
	}
}

func inferenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrInferenceFailed, op, err)
}

// BuildRequest assembles the request body: system prompt, prior history with
// usage stripped, then the new user turn with the optional image.
func (s *InferenceService) BuildRequest(in ChatInput) ChatRequest {
	messages := make([]ChatMessage, 0, len(in.History)+2)
	messages = append(messages, ChatMessage{Role: string(domain.RoleSystem), Content: in.SystemPrompt})
	for _, m := range in.History {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	parts := []ContentPart{{Type: "text", Text: in.Text}}
	if len(in.Image) > 0 {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: ImageDataURI(in.Image)},
		})
	}
	messages = append(messages, ChatMessage{Role: string(domain.RoleUser), Content: parts})

	return ChatRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Stream:      false,
	}
}

// ImageDataURI encodes a JPEG payload as a base64 data URI.
func ImageDataURI(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

func (s *InferenceService) Chat(ctx context.Context, in ChatInput) (*domain.ChatResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrEmptyInput
	}
	if s.cfg.APIKey == "" || s.cfg.URL == "" {
		return nil, domain.ErrNotConfigured
	}

	payload, err := json.Marshal(s.BuildRequest(in))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, inferenceErr("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, inferenceErr("chat request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, inferenceErr("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, inferenceErr("api error", fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body, 300)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, inferenceErr("parse response", err)
	}

	var prompt, completion, total int
	if chatResp.Usage != nil {
		prompt = chatResp.Usage.PromptTokens
		completion = chatResp.Usage.CompletionTokens
		total = chatResp.Usage.TotalTokens
	}

	return &domain.ChatResult{
		Content: chatResp.content(),
		Usage:   NewUsageMetrics(prompt, completion, total, elapsed),
	}, nil
}

// NewUsageMetrics derives latency and throughput, both rounded to 2 decimals.
// Throughput is zero when the rounded latency is zero.
func NewUsageMetrics(prompt, completion, total int, elapsed time.Duration) domain.UsageMetrics {
	prompt, completion, total = max(prompt, 0), max(completion, 0), max(total, 0)
	if elapsed < 0 {
		elapsed = 0
	}

	latency := decimal.NewFromFloat(elapsed.Seconds()).Round(2)
	throughput := decimal.Zero
	if latency.IsPositive() {
		throughput = decimal.NewFromInt(int64(total)).Div(latency).Round(2)
	}

	return domain.UsageMetrics{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
		Latency:          latency.InexactFloat64(),
		Throughput:       throughput.InexactFloat64(),
	}
}

func snippet(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
