package normalize

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jonathan/address-lookup/internal/llm"
	"github.com/jonathan/address-lookup/internal/prompts"
	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/types"
)

// InputHeader is the header of the CSV sent to the model.
var InputHeader = []string{"Company", "Address", "Source URL"}

// OutputHeader is the header the model must answer with.
var OutputHeader = []string{"company_name", "street_address", "city", "state", "zip", "country", "source_url"}

// Normalizer rewrites a batch of raw address rows into structured fields.
type Normalizer struct {
	client llm.Client
	tier   llm.ModelTier
	logger *zap.Logger
}

// New creates a Normalizer backed by client.
func New(client llm.Client, tier llm.ModelTier, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tier == "" {
		tier = llm.TierStandard
	}
	return &Normalizer{client: client, tier: tier, logger: logger.Named("normalizer")}
}

// Normalize sends the whole batch to the model in a single request and returns the
// rewritten CSV text with any Markdown fence removed. The text is not validated here.
func (n *Normalizer) Normalize(ctx context.Context, csvText string, rowCount int) (string, error) {
	prompt := prompts.Format(prompts.MustGet("normalize.json", "normalize_addresses"), map[string]string{
		"Header":   strings.Join(OutputHeader, ","),
		"RowCount": strconv.Itoa(rowCount),
		"CSV":      csvText,
	})

	start := time.Now()
	text, err := n.client.GenerateContent(ctx, prompt, n.tier)
	if err != nil {
		return "", &GenerationError{Cause: err}
	}
	n.logger.Debug("normalizer response received",
		zap.Int("rows", rowCount),
		zap.Int("bytes", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return llm.CleanCodeBlock(text), nil
}

// Apply normalizes records and returns the structured rows in the same order.
// Any response that does not line up with the input yields a *MalformedResponseError
// and the caller keeps the original rows.
func (n *Normalizer) Apply(ctx context.Context, records []types.AddressRecord) ([]types.AddressRecord, error) {
	if len(records) == 0 {
		return records, nil
	}

	input, err := InputCSV(records)
	if err != nil {
		return nil, err
	}

	text, err := n.Normalize(ctx, input, len(records))
	if err != nil {
		return nil, err
	}

	return ParseResponse(text, records)
}

// InputCSV serializes raw rows with InputHeader.
func InputCSV(records []types.AddressRecord) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(InputHeader); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := w.Write([]string{r.Company, r.Street, r.SourceURL}); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.String(), nil
}

// ParseResponse validates the model's CSV against the original rows and merges it.
// The header must be OutputHeader, every row must have seven fields, the row count
// must match and each row's company must be its own input company, not a neighbour's. Company names
// and source URLs are always taken from original; rows whose address was a failure
// placeholder are kept verbatim.
func ParseResponse(text string, original []types.AddressRecord) ([]types.AddressRecord, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &MalformedResponseError{Reason: "invalid CSV", Cause: err}
	}
	if len(rows) == 0 {
		return nil, &MalformedResponseError{Reason: "empty response"}
	}
	if !headerMatches(rows[0]) {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("unexpected header %q", strings.Join(rows[0], ","))}
	}

	data := rows[1:]
	if len(data) != len(original) {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("expected %d rows, got %d", len(original), len(data))}
	}

	folded := make([]string, len(original))
	for i, r := range original {
		folded[i] = foldCompany(r.Company)
	}

	out := make([]types.AddressRecord, len(original))
	for i, row := range data {
		if len(row) != len(OutputHeader) {
			return nil, &MalformedResponseError{Row: i + 1, Reason: fmt.Sprintf("expected %d fields, got %d", len(OutputHeader), len(row))}
		}
		orig := original[i]
		if !companyMatches(row[0], i, folded) {
			return nil, &MalformedResponseError{Row: i + 1, Reason: fmt.Sprintf("company %q does not match %q", row[0], orig.Company)}
		}
		if isPlaceholder(orig.Street) {
			out[i] = orig
			continue
		}
		out[i] = types.AddressRecord{
			Company:   orig.Company,
			Street:    strings.TrimSpace(row[1]),
			City:      strings.TrimSpace(row[2]),
			State:     strings.TrimSpace(row[3]),
			Zip:       strings.TrimSpace(row[4]),
			Country:   strings.TrimSpace(row[5]),
			SourceURL: orig.SourceURL,
		}
	}

	return out, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(OutputHeader) {
		return false
	}
	for i, col := range header {
		if strings.ToLower(strings.TrimSpace(col)) != OutputHeader[i] {
			return false
		}
	}
	return true
}

// minFuzzyRunes is the folded length below which a company must match exactly.
const minFuzzyRunes = 5

// companyMatches reports whether got names the i-th input company. Case, Unicode form and
// punctuation are ignored. Longer names may differ by a few edits, but only when got is strictly
// closer to its own company than to every other company in the batch.
func companyMatches(got string, i int, folded []string) bool {
	g, want := foldCompany(got), folded[i]
	if g == want {
		return true
	}

	n := utf8.RuneCountInString(want)
	if n < minFuzzyRunes {
		return false
	}
	d := levenshtein.ComputeDistance(g, want)
	if d > max(2, n/4) {
		return false
	}
	for j, other := range folded {
		if j == i || other == want {
			continue
		}
		if levenshtein.ComputeDistance(g, other) <= d {
			return false
		}
	}
	return true
}

// foldCompany NFC-normalizes and lowercases name and keeps only letters and digits.
func foldCompany(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(norm.NFC.String(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPlaceholder(address string) bool {
	return address == "" || address == types.AddressNotFound || search.IsErrorSentinel(address)
}
