package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-hh-autoreply/internal/metrics"
)

const defaultGroqURL = "https://api.groq.com/openai/v1"

type groqClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewGroqClient creates a client for Groq's OpenAI-compatible chat completions API
func NewGroqClient(apiKey, model, baseURL string, httpClient *http.Client, m *metrics.Metrics) Client {
	if baseURL == "" {
		baseURL = defaultGroqURL
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &groqClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: httpClient,
		metrics:    m,
	}
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateCoverLetter sends the vacancy and resume summary to Groq
func (c *groqClient) GenerateCoverLetter(ctx context.Context, jobDescription, resumeSummary string) (string, error) {
	defer c.metrics.ObserveExternal("ai", "cover_letter", time.Now())

	reqBody := groqRequest{
		Model: c.model,
		Messages: []groqMessage{
			{Role: "system", Content: buildSystemPrompt()},
			{Role: "user", Content: buildUserPrompt(jobDescription, resumeSummary)},
		},
		Temperature: 0.7,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal groq request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var groqResp groqResponse
	if err := json.Unmarshal(bodyBytes, &groqResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if groqResp.Error != nil {
		return "", fmt.Errorf("API error: %s", groqResp.Error.Message)
	}

	if len(groqResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from groq API")
	}

	letter := cleanLetter(groqResp.Choices[0].Message.Content)
	if letter == "" {
		return "", fmt.Errorf("groq API returned an empty letter")
	}
	return letter, nil
}

// cleanLetter removes markdown fences and wrapping quotes models sometimes add
func cleanLetter(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if i := strings.IndexByte(content, '\n'); i >= 0 && !strings.Contains(content[:i], " ") {
			content = content[i+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	content = strings.TrimSpace(content)
	for _, q := range []string{`"`, "«"} {
		closing := q
		if q == "«" {
			closing = "»"
		}
		if strings.HasPrefix(content, q) && strings.HasSuffix(content, closing) && len(content) > len(q)+len(closing) {
			content = strings.TrimSuffix(strings.TrimPrefix(content, q), closing)
		}
	}
	return strings.TrimSpace(content)
}
