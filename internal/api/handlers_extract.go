package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/notice"
	"github.com/dgallion1/alertledger/internal/parser"
	"github.com/dgallion1/alertledger/internal/pipeline"
)

type extractResponse struct {
	Layout  string          `json:"layout"`
	Mode    string          `json:"mode"`
	Status  string          `json:"status"`
	Entry   *notice.Entry   `json:"entry,omitempty"`
	Missing []extract.Field `json:"missing_fields,omitempty"`
	Chunks  []string        `json:"chunks"`
}

// handleExtract runs one document through the engine synchronously and
// reports what it found. Nothing is posted or recorded.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	sender := strings.TrimSpace(r.FormValue("sender"))
	if sender == "" {
		jsonError(w, "sender is required", http.StatusBadRequest)
		return
	}
	_, fh, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	up, status, err := s.readUpload(fh, r.FormValue("content_type"))
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	ext, err := pipeline.ExtractDocument(sender, up.filename, up.contentType, up.data)
	switch {
	case errors.Is(err, extract.ErrUnknownLayout):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case errors.Is(err, parser.ErrUnsupportedFormat):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil && !errors.Is(err, extract.ErrIncomplete):
		s.log.Warn("dry-run extraction failed", "sender", sender, "filename", up.filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	resp := extractResponse{
		Layout: ext.Layout.Name,
		Mode:   ext.Layout.Mode.String(),
		Chunks: make([]string, 0, len(ext.Chunks)),
	}
	for _, c := range ext.Chunks {
		resp.Chunks = append(resp.Chunks, c.Text)
	}
	if err != nil {
		resp.Status = string(pipeline.StatusIncomplete)
		resp.Missing = extract.MissingFields(err)
	} else {
		resp.Status = "complete"
		resp.Entry = &ext.Entry
	}
	writeJSON(w, http.StatusOK, resp)
}
