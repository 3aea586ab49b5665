// Package export turns a session's result set into downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jonathan/address-lookup/internal/types"
)

// WriteCSV writes records under types.CanonicalHeader.
// The preview and every CSV download go through this function.
func WriteCSV(w io.Writer, records []types.AddressRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(types.CanonicalHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(r.Fields()); err != nil {
			return fmt.Errorf("failed to write CSV row for %q: %w", r.Company, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// CSVString returns the canonical CSV text for records.
func CSVString(records []types.AddressRecord) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}
