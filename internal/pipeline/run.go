// Package pipeline runs a lookup submission end to end: parse, resolve, normalize, store.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/address-lookup/internal/export"
	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/session"
	"github.com/jonathan/address-lookup/internal/types"
)

// Progress steps
const (
	StepResolve   = "resolve"
	StepNormalize = "normalize"
	StepStore     = "store"
)

// NoticeNormalizeFallback is shown when the normalizer's answer was discarded.
const NoticeNormalizeFallback = "Address normalization failed; showing the addresses as found."

// NoticeStoreFailed is shown when the result could not be kept for download.
const NoticeStoreFailed = "Results could not be saved for download; please try again."

// ProgressEvent represents a progress update during a lookup
type ProgressEvent struct {
	Step    string `json:"step"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Company string `json:"company,omitempty"`
	Message string `json:"message"`
}

// ProgressCallback is called when lookup progress occurs
type ProgressCallback func(event ProgressEvent)

// Normalizer rewrites raw rows into structured address fields.
type Normalizer interface {
	Apply(ctx context.Context, records []types.AddressRecord) ([]types.AddressRecord, error)
}

// Options holds the pipeline's collaborators
type Options struct {
	Resolver    search.Resolver
	Normalizer  Normalizer // nil disables normalization
	Store       session.Store
	Concurrency int // values below 2 resolve sequentially
	Logger      *zap.Logger
	OnProgress  ProgressCallback
}

// Result is the outcome of one submission.
type Result struct {
	ResultSet *types.ResultSet
	Preview   string   // canonical CSV text
	Notices   []string // user-facing warnings
}

// Pipeline runs lookup submissions.
type Pipeline struct {
	opts       Options
	logger     *zap.Logger
	progressMu sync.Mutex
	now        func() time.Time
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{opts: opts, logger: logger.Named("pipeline"), now: time.Now}
}

// Process parses rawText, resolves every company, normalizes the batch and stores it
// under sessionID. Lookup and normalization failures never abort: they end up in the
// rows or in Result.Notices. The only error is a *PersistError, returned together with
// the Result.
func (p *Pipeline) Process(ctx context.Context, rawText, sessionID string) (*Result, error) {
	names := types.ParseCompanyNames(rawText)
	start := p.now()

	records := p.resolveAll(ctx, names)

	rs := &types.ResultSet{Records: records, CreatedAt: start.UTC()}
	result := &Result{ResultSet: rs}

	if p.opts.Normalizer != nil && len(records) > 0 {
		p.emit(ProgressEvent{Step: StepNormalize, Total: len(records), Message: "normalizing addresses"})
		normalized, err := p.opts.Normalizer.Apply(ctx, records)
		if err != nil {
			p.logger.Warn("normalization failed, keeping raw addresses",
				zap.Int("records", len(records)), zap.Error(err))
			result.Notices = append(result.Notices, NoticeNormalizeFallback)
		} else {
			rs.Records = normalized
			rs.Normalized = true
		}
	}

	preview, err := export.CSVString(rs.Records)
	if err != nil {
		return nil, err
	}
	result.Preview = preview

	p.emit(ProgressEvent{Step: StepStore, Total: len(rs.Records), Message: "storing results"})
	if err := p.opts.Store.Put(ctx, sessionID, rs); err != nil {
		p.logger.Error("failed to store results", zap.String("session", sessionID), zap.Error(err))
		result.Notices = append(result.Notices, NoticeStoreFailed)
		return result, &PersistError{SessionID: sessionID, Cause: err}
	}

	p.logger.Info("lookup completed",
		zap.String("session", sessionID),
		zap.Int("companies", len(names)),
		zap.Bool("normalized", rs.Normalized),
		zap.Duration("elapsed", p.now().Sub(start)))
	return result, nil
}

// resolveAll resolves names into records in input order.
func (p *Pipeline) resolveAll(ctx context.Context, names []string) []types.AddressRecord {
	records := make([]types.AddressRecord, len(names))

	if p.opts.Concurrency == 1 {
		for i, name := range names {
			records[i] = p.resolveOne(ctx, i, len(names), name)
		}
		return records
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			// Each goroutine owns records[i].
			records[i] = p.resolveOne(ctx, i, len(names), name)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (p *Pipeline) resolveOne(ctx context.Context, index, total int, name string) types.AddressRecord {
	address, sourceURL := p.opts.Resolver.Resolve(ctx, name)
	if address == "" {
		address = types.AddressNotFound
	}
	p.emit(ProgressEvent{
		Step:    StepResolve,
		Index:   index,
		Total:   total,
		Company: name,
		Message: address,
	})
	return types.AddressRecord{Company: name, Street: address, SourceURL: sourceURL}
}

// emit calls the progress callback if configured
func (p *Pipeline) emit(event ProgressEvent) {
	if p.opts.OnProgress == nil {
		return
	}
	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.opts.OnProgress(event)
}
