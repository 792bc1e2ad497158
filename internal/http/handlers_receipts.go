package http

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/log"
)

// handleReceipt streams a receipt at the path recorded on its
// transaction. Users can only read objects under their own prefix.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key := "receipts/" + chi.URLParam(r, "owner") + "/" + name

	body, err := s.service.OpenReceipt(r.Context(), currentUser(r), key)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline")
	if _, err := io.Copy(w, body); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Receipt download interrupted", log.FieldReceiptKey, key, "error", err)
	}
}
