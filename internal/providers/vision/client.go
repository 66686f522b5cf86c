package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("vision: api key is required")

// StatusError carries a non-2xx HTTP status from the provider gateway.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision: status %d: %s", e.Code, e.Body)
}

// Options configures the OpenRouter chat/completions client.
type Options struct {
	APIKey     string
	BaseURL    string
	Referer    string
	Title      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs HTTP calls against an OpenRouter-compatible vision API.
// One Client serves every provider in the chain; the model name travels with
// each request.
type Client struct {
	apiKey     string
	baseURL    string
	referer    string
	title      string
	httpClient *http.Client
	logger     *infra.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
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

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		referer:    opts.Referer,
		title:      opts.Title,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Describe sends one vision request to the named model and returns the raw
// alt text from the first choice. HTTP failures surface as *StatusError so
// callers can classify them.
func (c *Client) Describe(ctx context.Context, model string, req domain.GenerationRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}

	imageRef := req.Source.URL
	if imageRef == "" {
		mime := req.Source.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		imageRef = fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Source.Data))
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(req.Language, req.Tone, req.WCAGLevel, req.SEOContext)},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: imageRef}},
				{Type: "text", Text: "Generate WCAG-compliant alt text for this image."},
			}},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vision: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vision: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: http request: %w", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("vision: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	text = strings.Trim(text, `"'`)
	c.logger.Debug().
		Str("model", model).
		Int("chars", len(text)).
		Msg("vision: model responded")
	return text, nil
}
