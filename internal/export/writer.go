package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/session"
	"github.com/jonathan/address-lookup/internal/types"
)

// File names and content types of the downloads.
const (
	CSVFileName     = "company_addresses.csv"
	CSVContentType  = "text/csv"
	XLSXFileName    = "company_addresses.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Writer renders a session's stored result set for download.
type Writer struct {
	store              session.Store
	clearAfterDownload bool
	logger             *zap.Logger
}

// NewWriter creates a Writer. When clearAfterDownload is set the session's entry is
// removed once a download has been rendered, so a second download is header-only.
func NewWriter(store session.Store, clearAfterDownload bool, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, clearAfterDownload: clearAfterDownload, logger: logger.Named("export")}
}

// Export renders the session's result set as CSV. A session with no stored
// result yields a header-only file.
func (w *Writer) Export(ctx context.Context, sessionID string) (*File, error) {
	return w.render(ctx, sessionID, func(records []types.AddressRecord) (*File, error) {
		body, err := CSVString(records)
		if err != nil {
			return nil, err
		}
		return &File{Name: CSVFileName, ContentType: CSVContentType, Body: []byte(body)}, nil
	})
}

// ExportXLSX renders the session's result set as an XLSX workbook.
func (w *Writer) ExportXLSX(ctx context.Context, sessionID string) (*File, error) {
	return w.render(ctx, sessionID, func(records []types.AddressRecord) (*File, error) {
		body, err := WriteXLSX(records)
		if err != nil {
			return nil, err
		}
		return &File{Name: XLSXFileName, ContentType: XLSXContentType, Body: body}, nil
	})
}

func (w *Writer) render(ctx context.Context, sessionID string, build func([]types.AddressRecord) (*File, error)) (*File, error) {
	var (
		records []types.AddressRecord
		found   bool
	)
	if sessionID != "" {
		rs, err := w.store.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session results: %w", err)
		}
		if rs != nil {
			records, found = rs.Records, true
		}
	}

	file, err := build(records)
	if err != nil {
		return nil, err
	}

	if w.clearAfterDownload && found {
		if err := w.store.Remove(ctx, sessionID); err != nil {
			w.logger.Warn("failed to clear session results", zap.String("session", sessionID), zap.Error(err))
		}
	}

	w.logger.Debug("rendered download",
		zap.String("file", file.Name),
		zap.Int("records", len(records)))
	return file, nil
}
