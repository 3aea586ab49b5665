// Package search resolves company mailing addresses through a web-search API.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/address-lookup/internal/config"
	"github.com/jonathan/address-lookup/internal/types"
	"go.uber.org/zap"
)

// MissingCredentialSentinel is returned as the address when no search API key is configured.
const MissingCredentialSentinel = "Error: search API key is not configured"

// errorPrefix starts every address string that encodes a lookup failure.
const errorPrefix = "Error: "

// Resolver looks up the mailing address of a company.
// Implementations fail closed: every failure is encoded in the returned address
// string and sourceURL is empty whenever no attributable result was found.
type Resolver interface {
	Resolve(ctx context.Context, company string) (address string, sourceURL string)
}

// Answer is the useful part of one search response.
type Answer struct {
	Text      string
	SourceURL string
}

// Address returns the answer text, or types.AddressNotFound when the search had none.
func (a *Answer) Address() string {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return types.AddressNotFound
	}
	return text
}

// BuildQuery returns the natural-language question sent to the search API.
func BuildQuery(company string) string {
	return fmt.Sprintf("What is the mailing address for company %s?", strings.TrimSpace(company))
}

// ErrorSentinel encodes a lookup failure as an address string.
func ErrorSentinel(err error) string {
	return errorPrefix + err.Error()
}

// IsErrorSentinel reports whether an address string encodes a failure.
func IsErrorSentinel(address string) bool {
	return strings.HasPrefix(address, errorPrefix)
}

// New creates the resolver selected by the search configuration.
func New(ctx context.Context, cfg config.SearchConfig, logger *zap.Logger) (Resolver, error) {
	switch cfg.Provider {
	case config.ProviderTavily, "":
		return NewTavilyResolver(TavilyOptions{
			APIKey:   cfg.APIKey,
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout,
		}, logger), nil
	case config.ProviderGoogle:
		return NewGoogleResolver(ctx, GoogleOptions{
			APIKey:   cfg.GoogleAPIKey,
			EngineID: cfg.GoogleCX,
			Timeout:  cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}
