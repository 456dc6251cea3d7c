package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"support-agent/internal/domain"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	Temperature    *float64             `json:"temperature,omitempty"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
	GetJSON(ctx context.Context, name string, v any) error
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI-compatible client serving two callers: the
// intent classifier (Complete) and the general agent (Chat).
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	cfgOnce sync.Once
	apiKey  string
	model   string
	cfgErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key and model retrieval. Both are fetched from SSM on the first call
// and reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.openai.com/v1",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveConfig fetches the API key and model name from SSM on the first
// call and returns the cached result on every subsequent call.
func (c *Client) resolveConfig(ctx context.Context) (apiKey, model string, err error) {
	c.cfgOnce.Do(func() {
		var tp tokenPayload
		if err := c.getter.GetJSON(ctx, c.paramPrefix+"/open-ai-token", &tp); err != nil {
			c.cfgErr = fmt.Errorf("openai: fetch token from paramstore: %w", err)
			return
		}
		if tp.Token == "" {
			c.cfgErr = errors.New("openai: API token is empty")
			return
		}
		name, err := c.getter.GetParameter(ctx, c.paramPrefix+"/config/openai_model")
		if err != nil {
			c.cfgErr = fmt.Errorf("openai: fetch model from paramstore: %w", err)
			return
		}
		if strings.TrimSpace(name) == "" {
			c.cfgErr = errors.New("openai: model name is empty")
			return
		}
		c.apiKey = tp.Token
		c.model = strings.TrimSpace(name)
	})
	return c.apiKey, c.model, c.cfgErr
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a
// 10s timeout if none was set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Chat sends the messages as-is and returns the assistant's reply text.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: messages must not be empty")
	}
	return c.complete(ctx, chatRequest{Messages: messages})
}

// Complete runs a single-prompt completion constrained to a one-field JSON
// label object, and returns the raw label text. Used by the intent
// classifier; the caller is responsible for normalizing the label.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("openai: prompt must not be empty")
	}
	zero := 0.0
	raw, err := c.complete(ctx, chatRequest{
		Messages:       []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}},
		Temperature:    &zero,
		ResponseFormat: labelResponseFormat(),
	})
	if err != nil {
		return "", err
	}
	return parseLabel(raw)
}

func (c *Client) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	apiKey, model, err := c.resolveConfig(ctx)
	if err != nil {
		return "", err
	}
	reqBody.Model = model

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func labelResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "intent_label",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"label":{"type":"string"}
				},
				"required":["label"]
			}`),
		},
	}
}

// labelEnvelope is the constrained response body for Complete.
type labelEnvelope struct {
	Label string `json:"label"`
}

// parseLabel decodes the single-object label envelope strictly: unknown
// fields, trailing values, and empty labels are all rejected.
func parseLabel(raw string) (string, error) {
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	var out labelEnvelope
	if err := dec.Decode(&out); err != nil {
		return "", fmt.Errorf("openai: decode label: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return "", errors.New("openai: decode label: multiple JSON values")
		}
		return "", fmt.Errorf("openai: decode label trailing data: %w", err)
	}
	if strings.TrimSpace(out.Label) == "" {
		return "", errors.New("openai: empty label in response")
	}
	return out.Label, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
