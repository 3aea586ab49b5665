// Package types defines the data structures shared across the address lookup packages.
package types

import (
	"strings"
	"time"
)

// AddressNotFound is stored as the address of a company that could not be resolved.
const AddressNotFound = "Address not found"

// AddressRecord is one resolved (and possibly normalized) company address.
// Before normalization the free-text answer is kept in Street and the other
// structured fields are empty. An empty SourceURL means no attributable source.
type AddressRecord struct {
	Company   string `json:"company"`
	Street    string `json:"street"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// Fields returns the record in canonical column order.
func (r AddressRecord) Fields() []string {
	return []string{r.Company, r.Street, r.City, r.State, r.Zip, r.Country, r.SourceURL}
}

// ResultSet is the ordered result of one lookup submission.
type ResultSet struct {
	Records    []AddressRecord `json:"records"`
	Normalized bool            `json:"normalized"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Len returns the number of records, treating a nil set as empty.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// CanonicalHeader is the column set shared by the preview and every download.
var CanonicalHeader = []string{"Company", "Street Address", "City", "State", "Zip", "Country", "Source URL"}

// ParseCompanyNames splits raw textarea input into company names.
// Lines are trimmed but otherwise kept as typed; blank lines are dropped and order is kept.
func ParseCompanyNames(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
