package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reportview/internal/logging"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider calls the generateContent method of the Gemini API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

func NewGeminiProvider(apiKey, model, baseURL string, timeout time.Duration, logger *logging.Logger) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends prompt as a single user turn.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	logger := p.logger.WithFields(map[string]interface{}{
		"provider":  "gemini",
		"model":     p.model,
		"operation": "generate",
	})
	logger.Debug("starting generate request")
	start := time.Now()

	body, err := json.Marshal(map[string]interface{}{
		"contents": []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(p.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"error":      err.Error(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Error("generate request failed")
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := strings.TrimSpace(string(raw))
		var apiErr geminiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		logger.WithFields(map[string]interface{}{
			"status":     resp.StatusCode,
			"error":      msg,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Error("generate returned non-OK status")
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, msg)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("gemini: failed to decode response: %w", err)
	}
	if reason := result.PromptFeedback.BlockReason; reason != "" {
		logger.WithContext("block_reason", reason).Warn("prompt blocked")
		return "", fmt.Errorf("gemini: prompt blocked: %s", reason)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: %w (finish reason %s)", ErrEmptyResponse, result.Candidates[0].FinishReason)
	}

	logger.WithFields(map[string]interface{}{
		"latency_ms":     time.Since(start).Milliseconds(),
		"response_bytes": len(text),
	}).Debug("generate request completed")
	return text, nil
}
