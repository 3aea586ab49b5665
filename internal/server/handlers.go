package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/export"
	"github.com/jonathan/address-lookup/internal/types"
)

type indexPage struct {
	CSVFileName  string
	XLSXFileName string
}

type resultsFragment struct {
	Count   int
	Notices []string
	Preview string
}

// handleIndex renders the form page and starts a session if needed
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.SessionID(w, r); err != nil {
		s.logger.Error("failed to start session", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	s.render(w, "index.html", indexPage{
		CSVFileName:  export.CSVFileName,
		XLSXFileName: export.XLSXFileName,
	})
}

// handleProcess looks up the submitted companies and returns the preview fragment
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.sessions.SessionID(w, r)
	if err != nil {
		s.logger.Error("failed to start session", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	form, err := s.parseProcessForm(w, r)
	if err != nil {
		s.logger.Info("rejected submission", zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	s.extendWriteDeadline(w, len(types.ParseCompanyNames(*form.Companies)))

	// A result with an error means the download hand-off failed; the fragment carries the notice.
	result, err := s.pipeline.Process(r.Context(), *form.Companies, sessionID)
	if result == nil {
		s.logger.Error("lookup failed", zap.String("session", sessionID), zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	s.render(w, "results.html", resultsFragment{
		Count:   result.ResultSet.Len(),
		Notices: result.Notices,
		Preview: result.Preview,
	})
}

// extendWriteDeadline gives a submission enough time for every lookup to hit its timeout.
func (s *Server) extendWriteDeadline(w http.ResponseWriter, companies int) {
	var deadline time.Time
	if s.lookupTimeout > 0 {
		deadline = time.Now().Add(baseWriteTimeout + time.Duration(companies)*s.lookupTimeout)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
		s.logger.Debug("write deadline not adjusted", zap.Error(err))
	}
}

// handleDownload serves the session's results as CSV
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, s.exporter.Export)
}

// handleDownloadXLSX serves the session's results as an Excel workbook
func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, s.exporter.ExportXLSX)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, build func(context.Context, string) (*export.File, error)) {
	// Without a valid cookie there is nothing stored, which renders a header-only file.
	sessionID, _ := s.sessions.Lookup(r)

	file, err := build(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("failed to render download", zap.String("session", sessionID), zap.Error(err))
		s.errorResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Body); err != nil {
		s.logger.Warn("failed to write download", zap.Error(err))
	}
}

// render executes a template into a buffer so a template error never yields a half-written page
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
