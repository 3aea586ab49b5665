package search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleOptions configures a GoogleResolver.
type GoogleOptions struct {
	APIKey   string
	EngineID string
	Timeout  time.Duration
	// ClientOptions are appended to the service options (used to point tests at a fake server).
	ClientOptions []option.ClientOption
}

// GoogleResolver resolves addresses with the Google Custom Search API.
// Custom Search has no synthesized answer, so the first result's snippet is used.
type GoogleResolver struct {
	svc      *customsearch.Service
	engineID string
	logger   *zap.Logger
}

// NewGoogleResolver creates a resolver. Missing credentials are not an error: the
// resolver then returns MissingCredentialSentinel for every lookup.
func NewGoogleResolver(ctx context.Context, opts GoogleOptions, logger *zap.Logger) (*GoogleResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &GoogleResolver{engineID: opts.EngineID, logger: logger.Named("google")}
	if opts.APIKey == "" || opts.EngineID == "" {
		return r, nil
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	clientOpts := append([]option.ClientOption{
		option.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: &apiKeyTransport{key: opts.APIKey, base: http.DefaultTransport},
		}),
	}, opts.ClientOptions...)

	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, &RequestError{Message: "failed to create customsearch service", Cause: err}
	}
	r.svc = svc
	return r, nil
}

// Resolve implements Resolver.
func (r *GoogleResolver) Resolve(ctx context.Context, company string) (string, string) {
	if r.svc == nil {
		return MissingCredentialSentinel, ""
	}

	answer, err := r.Search(ctx, BuildQuery(company))
	if err != nil {
		r.logger.Warn("address lookup failed", zap.String("company", company), zap.Error(err))
		return ErrorSentinel(err), ""
	}

	return answer.Address(), answer.SourceURL
}

// Search runs one Custom Search query limited to a single result.
func (r *GoogleResolver) Search(ctx context.Context, query string) (*Answer, error) {
	resp, err := r.svc.Cse.List().Cx(r.engineID).Q(query).Num(1).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &RequestError{StatusCode: apiErr.Code, Message: apiErr.Message, Cause: err}
		}
		return nil, &RequestError{Message: "HTTP request failed", Cause: err}
	}

	if len(resp.Items) == 0 {
		return &Answer{}, nil
	}
	item := resp.Items[0]
	return &Answer{Text: item.Snippet, SourceURL: item.Link}, nil
}

// apiKeyTransport adds the key query parameter. option.WithAPIKey is ignored once
// option.WithHTTPClient is set, and the custom client is needed for the timeout.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	q.Set("key", t.key)
	clone.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(clone)
}
