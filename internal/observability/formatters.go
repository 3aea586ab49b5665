// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content.
// Widths are measured in terminal cells so CJK names and accents keep the border aligned.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// fit truncates s to width cells and pads it on the right.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// Summary counts the outcome of a result set.
type Summary struct {
	Total    int
	Found    int
	NotFound int
	Failed   int
}

// Summarize classifies every record of rs.
func Summarize(rs *types.ResultSet) Summary {
	var s Summary
	if rs == nil {
		return s
	}
	for _, r := range rs.Records {
		s.Total++
		switch {
		case search.IsErrorSentinel(r.Street):
			s.Failed++
		case r.Street == "" || r.Street == types.AddressNotFound:
			s.NotFound++
		default:
			s.Found++
		}
	}
	return s
}

// PrintProgress outputs one line per resolved company.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(index, total int, company, address string) {
	mark := "✓"
	switch {
	case search.IsErrorSentinel(address):
		mark = "✗"
	case address == types.AddressNotFound:
		mark = "?"
	}
	fmt.Fprintf(p.out, "[%d/%d] %s %s: %s\n", index+1, total, mark, company,
		runewidth.Truncate(address, boxWidth, "..."))
}

// PrintResultSet outputs a summary box of a finished lookup.
func (p *Printer) PrintResultSet(rs *types.ResultSet, notices []string) {
	if rs == nil {
		return
	}

	s := Summarize(rs)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Companies:  %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("Found:      %d\n", s.Found))
	sb.WriteString(fmt.Sprintf("Not found:  %d\n", s.NotFound))
	sb.WriteString(fmt.Sprintf("Errors:     %d\n", s.Failed))
	if rs.Normalized {
		sb.WriteString("Normalized: yes\n")
	} else {
		sb.WriteString("Normalized: no\n")
	}

	if len(rs.Records) > 0 {
		sb.WriteString("\n")
		count := min(len(rs.Records), maxItemsToShow)
		for i := 0; i < count; i++ {
			r := rs.Records[i]
			sb.WriteString(fmt.Sprintf("  • %s\n", r.Company))
			sb.WriteString(fmt.Sprintf("    %s\n", formatAddress(r)))
		}
		if len(rs.Records) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(rs.Records)-maxItemsToShow))
		}
	}

	if len(notices) > 0 {
		sb.WriteString("\n")
		for _, n := range notices {
			sb.WriteString(fmt.Sprintf("⚠ %s\n", n))
		}
	}

	p.printBox("ADDRESS LOOKUP RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

func formatAddress(r types.AddressRecord) string {
	parts := []string{r.Street}
	for _, f := range []string{r.City, strings.TrimSpace(r.State + " " + r.Zip), r.Country} {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ", ")
}
