package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/backup"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sources"
)

type setBudgetRequest struct {
	Month    string          `json:"month"`
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

type revisionResponse struct {
	Revision int64 `json:"revision"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	modeParam := strings.TrimSpace(r.URL.Query().Get("mode"))
	mode, ok := sources.ParseImportMode(modeParam)
	if !ok {
		s.fail(w, r, log.OpImport, invalidParam("mode", modeParam))
		return
	}

	res, err := s.ledger.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes), mode)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req setBudgetRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	rev, err := s.ledger.SetBudget(r.Context(), req.Month, sanitizeInput(req.Category), req.Limit)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(revisionResponse{Revision: rev}).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rev, err := s.ledger.DeleteBudget(r.Context(), strings.TrimSpace(q.Get("month")), sanitizeInput(q.Get("category")))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(revisionResponse{Revision: rev}).Write(w)
}

// handleAddTransactions stores a single, split or recurring entry.
func (s *Server) handleAddTransactions(w http.ResponseWriter, r *http.Request) {
	var entry services.TransactionEntry
	if err := DecodeJSONBody(w, r, &entry); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	entry.Category = sanitizeInput(entry.Category)
	entry.Description = sanitizeInput(entry.Description)
	entry.Notes = sanitizeInput(entry.Notes)
	for i := range entry.Splits {
		entry.Splits[i].Category = sanitizeInput(entry.Splits[i].Category)
	}

	res, err := s.ledger.AddTransactions(r.Context(), entry)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	rev, err := s.ledger.DeleteTransaction(r.Context(), sanitizeInput(r.PathValue("id")))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(revisionResponse{Revision: rev}).Write(w)
}

// handleExport streams the whole dataset as a version 2 backup document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ledger.Export(r.Context(), strings.ToUpper(sanitizeInput(r.URL.Query().Get("currency"))))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="fintrack-backup-%s.json"`, doc.ExportedAt.Format("2006-01-02")))
	if err := backup.Encode(w, doc); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Backup export failed",
			log.FieldOperation, log.OpRead,
			log.FieldError, err)
	}
}
