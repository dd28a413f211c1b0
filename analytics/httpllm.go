package analytics

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// HTTPLLM calls an OpenAI-compatible chat-completions endpoint for
// multimodal analysis, following the same api-key-from-env,
// http.NewRequest-and-do shape cvoalex-webcodectest's go-token-server
// uses to call OpenAI's REST API, generalized to a configurable base URL
// so any compatible backend (local model server included) can serve it.
type HTTPLLM struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPLLM builds an HTTPLLM against baseURL, reading its API key from
// apiKeyEnv.
func NewHTTPLLM(baseURL, model, apiKeyEnv string) *HTTPLLM {
	return &HTTPLLM{
		baseURL: baseURL,
		apiKey:  os.Getenv(apiKeyEnv),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze implements LLM by sending prompt plus the base64-encoded image
// as a chat-completions request and parsing the model's JSON-encoded
// Analysis out of the first choice's content.
func (h *HTTPLLM) Analyze(ctx context.Context, prompt string, image []byte, metadata map[string]any) (*Analysis, error) {
	b64 := base64.StdEncoding.EncodeToString(image)
	reqBody := chatRequest{
		Model: h.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatContent{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + b64}},
				},
			},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("analytics: marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("analytics: build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics: llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analytics: llm returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("analytics: decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("analytics: llm returned no choices")
	}

	var analysis Analysis
	content := parsed.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		// model replied in plain prose rather than the requested JSON
		// shape; fall back to treating the whole reply as the summary.
		analysis.Summary = content
	}
	return &analysis, nil
}
