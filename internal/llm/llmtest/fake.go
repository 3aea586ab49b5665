// Package llmtest provides an in-memory llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jonathan/address-lookup/internal/llm"
)

// Client returns a canned response (or error) and records every prompt it receives.
type Client struct {
	Response string
	Err      error
	// Respond, when set, computes the response from the prompt instead of Response.
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	tiers   []llm.ModelTier
	closed  bool
}

var _ llm.Client = (*Client)(nil)

// GenerateContent implements llm.Client.
func (c *Client) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.tiers = append(c.tiers, tier)
	c.mu.Unlock()

	if c.Respond != nil {
		return c.Respond(prompt)
	}
	return c.Response, c.Err
}

// Close implements llm.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Prompts returns the prompts received so far.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Tiers returns the tiers requested so far.
func (c *Client) Tiers() []llm.ModelTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ModelTier(nil), c.tiers...)
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
