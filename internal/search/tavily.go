package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/address-lookup/internal/schemas"
	"go.uber.org/zap"
)

// DefaultEndpoint is the Tavily search endpoint.
const DefaultEndpoint = "https://api.tavily.com/search"

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a search response is read.
const maxResponseBytes = 1 << 20

// TavilyOptions configures a TavilyResolver.
type TavilyOptions struct {
	APIKey     string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client // overrides Timeout when set
}

// TavilyResolver resolves addresses with the Tavily search API.
type TavilyResolver struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// NewTavilyResolver creates a resolver. An empty API key is allowed: every lookup then
// returns MissingCredentialSentinel without a network call.
func NewTavilyResolver(opts TavilyOptions, logger *zap.Logger) *TavilyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &TavilyResolver{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		httpClient: client,
		logger:     logger.Named("tavily"),
	}
}

// Resolve implements Resolver.
func (r *TavilyResolver) Resolve(ctx context.Context, company string) (string, string) {
	if r.apiKey == "" {
		return MissingCredentialSentinel, ""
	}

	answer, err := r.Search(ctx, BuildQuery(company))
	if err != nil {
		r.logger.Warn("address lookup failed", zap.String("company", company), zap.Error(err))
		return ErrorSentinel(err), ""
	}

	return answer.Address(), answer.SourceURL
}

// Search issues one search request and extracts the answer and first result URL.
func (r *TavilyResolver) Search(ctx context.Context, query string) (*Answer, error) {
	payload, err := json.Marshal(tavilyRequest{
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    1,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, &RequestError{Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &RequestError{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: snippet(body)}
	}

	if err := schemas.Validate(schemas.TavilyResponse, body); err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: "unexpected response", Cause: err}
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}

	answer := &Answer{Text: parsed.Answer}
	if len(parsed.Results) > 0 {
		answer.SourceURL = parsed.Results[0].URL
	}
	return answer, nil
}

// snippet shortens an error body for messages shown to users.
func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
