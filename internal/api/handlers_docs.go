package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/alertledger/internal/kvstore"
)

var (
	suffixPattern = regexp.MustCompile(`^\d{4}$`)
	hashPattern   = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// handlePutAccount maps a card suffix to a ledger account.
func (s *Server) handlePutAccount(w http.ResponseWriter, r *http.Request) {
	suffix := chi.URLParam(r, "suffix")
	if !suffixPattern.MatchString(suffix) {
		jsonError(w, "suffix must be four digits", http.StatusBadRequest)
		return
	}

	var body struct {
		LedgerAccountID string `json:"ledger_account_id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	body.LedgerAccountID = strings.TrimSpace(body.LedgerAccountID)
	if body.LedgerAccountID == "" {
		jsonError(w, "ledger_account_id is required", http.StatusBadRequest)
		return
	}

	if err := s.kv.MapAccount(r.Context(), suffix, body.LedgerAccountID); err != nil {
		s.log.Error("map account failed", "suffix", suffix, "error", err)
		jsonError(w, "failed to store mapping", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"suffix":            suffix,
		"ledger_account_id": body.LedgerAccountID,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	suffix := chi.URLParam(r, "suffix")
	id, err := s.kv.ResolveAccount(r.Context(), suffix)
	if errors.Is(err, kvstore.ErrAccountNotMapped) {
		jsonError(w, "account not mapped", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "lookup failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"suffix":            suffix,
		"ledger_account_id": id,
	})
}

// handleGetDocument reports which job handled a document hash.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !hashPattern.MatchString(hash) {
		jsonError(w, "hash must be a hex sha-256", http.StatusBadRequest)
		return
	}
	rec, err := s.kv.LookupDocument(r.Context(), hash)
	if err != nil {
		jsonError(w, "lookup failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if rec == nil {
		jsonError(w, "document not seen", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleForgetDocument drops a dedup record so the document can be
// ingested again.
func (s *Server) handleForgetDocument(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !hashPattern.MatchString(hash) {
		jsonError(w, "hash must be a hex sha-256", http.StatusBadRequest)
		return
	}
	if err := s.kv.ForgetDocument(r.Context(), hash); err != nil {
		jsonError(w, "delete failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
