package explainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"folio/internal/observability"
)

const completionTimeout = 120 * time.Second

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Messages            []chatMessage   `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// azureClient talks to an Azure OpenAI chat-completions deployment over
// plain HTTP. The deployment name is part of the URL, the key rides in the
// api-key header.
type azureClient struct {
	endpoint   string
	deployment string
	version    string
	apiKey     string
	httpClient *http.Client
	log        *observability.Logger
}

func newAzureClient(endpoint, deployment, version, apiKey string) *azureClient {
	return &azureClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		version:    version,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: completionTimeout},
		log:        observability.Component("explainer.azure"),
	}
}

func (c *azureClient) url() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.version)
}

// complete sends one system+user exchange and returns the raw assistant text.
func (c *azureClient) complete(ctx context.Context, system, user string, maxTokens int, jsonOutput bool) (string, error) {
	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxCompletionTokens: maxTokens,
	}
	if jsonOutput {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("azure openai %s: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return "", fmt.Errorf("azure openai returned %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("azure openai returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	c.log.Info(ctx, "completion received",
		"chars", len(content), "elapsed", time.Since(start).Round(time.Millisecond))
	return content, nil
}

// ping issues a minimal completion to verify credentials and connectivity.
func (c *azureClient) ping(ctx context.Context) error {
	_, err := c.complete(ctx, "You are a connectivity probe.", "Reply with OK.", 10, false)
	return err
}
