package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/address-lookup/internal/llm"
	"github.com/jonathan/address-lookup/internal/llm/llmtest"
	"github.com/jonathan/address-lookup/internal/normalize"
	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/session"
	"github.com/jonathan/address-lookup/internal/types"
)

// mapResolver answers from a fixed table and records the call order.
type mapResolver struct {
	answers map[string][2]string
	delay   time.Duration

	mu    sync.Mutex
	calls []string
}

func (m *mapResolver) Resolve(_ context.Context, company string) (string, string) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.calls = append(m.calls, company)
	m.mu.Unlock()

	a, ok := m.answers[company]
	if !ok {
		return types.AddressNotFound, ""
	}
	return a[0], a[1]
}

func newStore(t *testing.T) *session.MemoryStore {
	t.Helper()
	store, err := session.NewMemoryStore(16)
	require.NoError(t, err)
	return store
}

func TestProcess_OneRecordPerNonBlankLine(t *testing.T) {
	store := newStore(t)
	resolver := &mapResolver{answers: map[string][2]string{
		"Acme Corp": {"1 Road Runner Way, Phoenix, AZ 85001, USA", "https://acme.example.com"},
	}}
	p := New(Options{Resolver: resolver, Store: store})

	result, err := p.Process(context.Background(), "Acme Corp\n\nGlobex", "s1")
	require.NoError(t, err)

	require.Equal(t, 2, result.ResultSet.Len())
	assert.Equal(t, []string{"Acme Corp", "Globex"}, resolver.calls)
	assert.Equal(t, "Acme Corp", result.ResultSet.Records[0].Company)
	assert.Equal(t, "https://acme.example.com", result.ResultSet.Records[0].SourceURL)
	assert.Equal(t, types.AddressNotFound, result.ResultSet.Records[1].Street)
	assert.False(t, result.ResultSet.Normalized)
	assert.Empty(t, result.Notices)

	assert.Equal(t,
		"Company,Street Address,City,State,Zip,Country,Source URL\n"+
			`Acme Corp,"1 Road Runner Way, Phoenix, AZ 85001, USA",,,,,https://acme.example.com`+"\n"+
			"Globex,Address not found,,,,,\n",
		result.Preview)

	stored, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, result.ResultSet.Records, stored.Records)
}

func TestProcess_EmptyInput(t *testing.T) {
	store := newStore(t)
	resolver := &mapResolver{}
	client := &llmtest.Client{Response: "unused"}
	p := New(Options{
		Resolver:   resolver,
		Normalizer: normalize.New(client, llm.TierLite, nil),
		Store:      store,
	})

	result, err := p.Process(context.Background(), "\n  \n", "s1")
	require.NoError(t, err)

	assert.Equal(t, 0, result.ResultSet.Len())
	assert.Empty(t, resolver.calls)
	assert.Empty(t, client.Prompts(), "no model call for an empty batch")
	assert.Equal(t, "Company,Street Address,City,State,Zip,Country,Source URL\n", result.Preview)
}

func TestProcess_MissingCredential(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	resolver := search.NewTavilyResolver(search.TavilyOptions{Endpoint: ts.URL}, nil)
	p := New(Options{Resolver: resolver, Store: newStore(t)})

	result, err := p.Process(context.Background(), "Acme Corp\nGlobex", "s1")
	require.NoError(t, err)

	require.Equal(t, 2, result.ResultSet.Len())
	for _, r := range result.ResultSet.Records {
		assert.Equal(t, search.MissingCredentialSentinel, r.Street)
		assert.Empty(t, r.SourceURL)
	}
	assert.Zero(t, calls.Load(), "no outbound call without a key")
}

func TestProcess_WithTavilyAndNormalizer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(req.Query, "Acme Corp") {
			_, _ = w.Write([]byte(`{"answer":"1 Road Runner Way, Phoenix, AZ 85001, USA","results":[{"url":"https://acme.example.com"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"answer":null,"results":[]}`))
	}))
	defer ts.Close()

	client := &llmtest.Client{Response: "```csv\n" +
		"company_name,street_address,city,state,zip,country,source_url\n" +
		"Acme Corp,1 Road Runner Way,Phoenix,AZ,85001,USA,https://acme.example.com\n" +
		"Globex,Address not found,,,,,\n" +
		"```"}

	store := newStore(t)
	p := New(Options{
		Resolver:   search.NewTavilyResolver(search.TavilyOptions{APIKey: "tvly-key", Endpoint: ts.URL}, nil),
		Normalizer: normalize.New(client, llm.TierLite, nil),
		Store:      store,
	})

	result, err := p.Process(context.Background(), "Acme Corp\n\nGlobex", "s1")
	require.NoError(t, err)

	assert.True(t, result.ResultSet.Normalized)
	assert.Len(t, client.Prompts(), 1, "one model call per batch")
	assert.Equal(t, types.AddressRecord{
		Company: "Acme Corp", Street: "1 Road Runner Way", City: "Phoenix", State: "AZ",
		Zip: "85001", Country: "USA", SourceURL: "https://acme.example.com",
	}, result.ResultSet.Records[0])
	assert.Equal(t, types.AddressNotFound, result.ResultSet.Records[1].Street)
	assert.Contains(t, result.Preview, "Acme Corp,1 Road Runner Way,Phoenix,AZ,85001,USA,https://acme.example.com\n")
}

func TestProcess_NormalizerFallback(t *testing.T) {
	tests := []struct {
		name   string
		client *llmtest.Client
	}{
		{name: "generation error", client: &llmtest.Client{Err: errors.New("quota exceeded")}},
		{name: "malformed response", client: &llmtest.Client{Response: "I could not find these companies."}},
		{name: "dropped row", client: &llmtest.Client{Response: "company_name,street_address,city,state,zip,country,source_url\n" +
			"Acme Corp,1 Road Runner Way,Phoenix,AZ,85001,USA,\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mapResolver{answers: map[string][2]string{
				"Acme Corp": {"1 Road Runner Way, Phoenix, AZ 85001", "https://acme.example.com"},
			}}
			p := New(Options{
				Resolver:   resolver,
				Normalizer: normalize.New(tt.client, llm.TierLite, nil),
				Store:      newStore(t),
			})

			result, err := p.Process(context.Background(), "Acme Corp\nGlobex", "s1")
			require.NoError(t, err)

			assert.False(t, result.ResultSet.Normalized)
			assert.Equal(t, []string{NoticeNormalizeFallback}, result.Notices)
			require.Equal(t, 2, result.ResultSet.Len())
			assert.Equal(t, "1 Road Runner Way, Phoenix, AZ 85001", result.ResultSet.Records[0].Street)
			assert.Equal(t, "Globex", result.ResultSet.Records[1].Company)
		})
	}
}

func TestProcess_ConcurrentKeepsInputOrder(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	answers := map[string][2]string{}
	for _, n := range names {
		answers[n] = [2]string{"addr " + n, "https://" + n + ".example.com"}
	}
	resolver := &mapResolver{answers: answers, delay: 5 * time.Millisecond}

	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	p := New(Options{
		Resolver:    resolver,
		Store:       newStore(t),
		Concurrency: 4,
		OnProgress: func(e ProgressEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})

	result, err := p.Process(context.Background(), strings.Join(names, "\n"), "s1")
	require.NoError(t, err)

	require.Equal(t, len(names), result.ResultSet.Len())
	for i, n := range names {
		assert.Equal(t, n, result.ResultSet.Records[i].Company)
		assert.Equal(t, "addr "+n, result.ResultSet.Records[i].Street)
	}

	resolved := 0
	for _, e := range events {
		if e.Step == StepResolve {
			resolved++
			assert.Equal(t, len(names), e.Total)
		}
	}
	assert.Equal(t, len(names), resolved)
}

func TestProcess_ReplacesPreviousResult(t *testing.T) {
	store := newStore(t)
	p := New(Options{Resolver: &mapResolver{}, Store: store})

	_, err := p.Process(context.Background(), "Acme Corp\nGlobex", "s1")
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "Initech", "s1")
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, "Initech", stored.Records[0].Company)
}

type brokenStore struct {
	session.Store
}

func (brokenStore) Put(context.Context, string, *types.ResultSet) error {
	return errors.New("connection reset")
}

func TestProcess_StoreFailureStillReturnsPreview(t *testing.T) {
	p := New(Options{Resolver: &mapResolver{}, Store: brokenStore{}})

	result, err := p.Process(context.Background(), "Acme Corp", "s1")

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "s1", persistErr.SessionID)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ResultSet.Len())
	assert.Contains(t, result.Preview, "Acme Corp,Address not found")
	assert.Contains(t, result.Notices, NoticeStoreFailed)
}
