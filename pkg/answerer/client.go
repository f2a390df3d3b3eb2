// Package answerer is the HTTP client for the external retrieval-and-
// generation service. The service owns embedding, vector search, and
// language generation; this client only ships queries and returns the
// answer text with its backing chunks.
package answerer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultTimeout = 60 * time.Second

// Client asks questions against the answer service.
type Client interface {
	Ask(ctx context.Context, req Request) (*Response, error)
}

// EnhancementFlags toggle service-side retrieval enhancements.
type EnhancementFlags struct {
	Query    bool `json:"query"`
	Distance bool `json:"distance"`
	Rerank   bool `json:"rerank"`
}

// Request is the body for POST /ask.
type Request struct {
	Query string           `json:"query"`
	TopK  int              `json:"top_k"`
	Flags EnhancementFlags `json:"enhancement_flags"`
}

// SourceMetadata identifies where a retrieved chunk came from.
type SourceMetadata struct {
	Source      string `json:"source"`
	PageNumbers []int  `json:"page_numbers"`
}

// Source is one retrieved chunk backing an answer.
type Source struct {
	ChunkText string         `json:"chunk"`
	Metadata  SourceMetadata `json:"metadata"`
	Distance  float64        `json:"distance"`
}

// Similarity converts the chunk's vector distance to a 0-100 similarity
// score. Non-finite distances score zero.
func (s Source) Similarity() float64 {
	if math.IsInf(s.Distance, 0) || math.IsNaN(s.Distance) {
		return 0
	}
	return 1.0 / (1.0 + s.Distance) * 100.0
}

// StatusError is returned for non-200 responses so callers can decide
// which statuses are worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Response is the service's answer for a single query.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Success bool     `json:"success"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero or negative
// disables pacing.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an answer service client.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Ask(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "answerer: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "answerer: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "answerer: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "answerer: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "answerer: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(&StatusError{Code: resp.StatusCode, Body: string(respBody)}, "answerer: ask")
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "answerer: unmarshal response")
	}

	return &result, nil
}
