package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// BatchSeparator delimits translations in a batch response.
const BatchSeparator = "|||"

// Client handles translation requests via the Google Gemini API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retryDelay func(attempt int) time.Duration
}

// NewClient creates a Gemini translation client.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		retryDelay: retryBackoff,
	}
}

// apiError is a failure reported by the API itself, as opposed to a
// transport failure. Transport failures are always worth retrying;
// apiError carries whether this one is.
type apiError struct {
	status    int
	message   string
	retryable bool
}

func (e *apiError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("gemini status %d: %s", e.status, e.message)
	}
	return "gemini: " + e.message
}

// retryBackoff doubles per attempt starting at one second, capped at
// eight.
func retryBackoff(attempt int) time.Duration {
	d := time.Second << (attempt - 1)
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *genConfig      `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type genConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
	Error         *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Translate sends one translation request and returns the model output.
// Transient failures (transport errors, rate limits, server errors) are
// retried with exponential backoff; anything the API rejects outright
// fails immediately.
func (c *Client) Translate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: userPrompt}},
			},
		},
		GenerationConfig: &genConfig{
			MaxOutputTokens: 8192,
			Temperature:     0.3,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal translation request: %w", err)
	}

	const maxAttempts = 4
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.doRequest(ctx, bodyBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var ae *apiError
		if errors.As(err, &ae) && !ae.retryable {
			return "", err
		}
		if attempt == maxAttempts {
			break
		}

		delay := c.retryDelay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Translation request failed, backing off")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("translation failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, bodyBytes []byte) (string, error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{
			status:    resp.StatusCode,
			message:   string(respBody),
			retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", &apiError{
			status:  apiResp.Error.Code,
			message: fmt.Sprintf("[%s] %s", apiResp.Error.Status, apiResp.Error.Message),
		}
	}
	if len(apiResp.Candidates) == 0 {
		// An OK response with no candidates is usually a transient
		// safety-filter or capacity hiccup.
		return "", &apiError{message: "no candidates in response", retryable: true}
	}

	var result strings.Builder
	for _, p := range apiResp.Candidates[0].Content.Parts {
		result.WriteString(p.Text)
	}

	if apiResp.UsageMetadata != nil {
		log.Debug().
			Int("prompt_tokens", apiResp.UsageMetadata.PromptTokenCount).
			Int("output_tokens", apiResp.UsageMetadata.CandidatesTokenCount).
			Msg("Translation complete")
	}

	return strings.TrimSpace(result.String()), nil
}

// SplitBatch parses a batch response into one translation per request
// item. Missing trailing items come back empty.
func SplitBatch(response string, n int) []string {
	parts := strings.Split(response, BatchSeparator)
	results := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(parts) {
			results[i] = strings.TrimSpace(parts[i])
		}
	}
	return results
}
