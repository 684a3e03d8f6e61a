// Package analysis talks to the Gemini generative API: it turns uploaded
// medical documents into a written treatment analysis and turns an analysis
// into a treatment board.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4096
)

var (
	// ErrUnsupportedType is returned for documents that are neither images
	// nor PDFs.
	ErrUnsupportedType = errors.New("analysis: unsupported document type")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("analysis: empty model response")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("analysis: API key not configured")
)

// Config configures a Client. Zero values select defaults; a zero
// RequestsPerSecond disables rate limiting.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client calls the generateContent endpoint of one model.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    &http.Client{},
		limiter: limiter,
	}
}

// SupportedType reports whether documents of mimeType can be analyzed.
func SupportedType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}

// AnalyzeDocument asks the model for a readable treatment plan based on the
// document in data.
func (c *Client) AnalyzeDocument(ctx context.Context, data []byte, mimeType string) (string, error) {
	if !SupportedType(mimeType) {
		return "", fmt.Errorf("analysis.AnalyzeDocument: %q: %w", mimeType, ErrUnsupportedType)
	}

	text, err := c.generate(ctx, []part{
		{Text: analysisPrompt},
		{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
	})
	if err != nil {
		return "", fmt.Errorf("analysis.AnalyzeDocument: %w", err)
	}
	return text, nil
}

// GeneratePlan asks the model for a treatment board derived from analysis and
// returns the board JSON as extracted from the reply.
func (c *Client) GeneratePlan(ctx context.Context, analysis string) (string, error) {
	text, err := c.generate(ctx, []part{{Text: planPrompt(analysis)}})
	if err != nil {
		return "", fmt.Errorf("analysis.GeneratePlan: %w", err)
	}

	plan, err := ExtractPlan(text)
	if err != nil {
		log.Warn().Err(err).Int("reply_len", len(text)).Msg("analysis.GeneratePlan: unusable model reply")
		return "", fmt.Errorf("analysis.GeneratePlan: %w", err)
	}
	return plan, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	// The deadline covers reading the reply, so a slow model surfaces as
	// context.DeadlineExceeded.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/models/" + c.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && !errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("send request: %w: %w", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("model API %d %s: %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("model API %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("decode response: %w", ctx.Err())
		}
		return "", fmt.Errorf("decode response: %w", err)
	}

	var sb strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}

	log.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(start)).
		Int("reply_len", sb.Len()).
		Msg("analysis: model replied")

	return sb.String(), nil
}
