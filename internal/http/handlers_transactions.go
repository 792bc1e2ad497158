package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/store"
)

func currentUser(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.Transactions(r.Context(), currentUser(r), parsePredicate(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(toTransactionList(view)).Write(w)
}

// handleGetTransaction reads the stored record directly so an edit form
// always starts from the latest write.
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toTransaction(t)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := parseTransactionRequest(r, s.maxReceiptBytes)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	defer in.Close()

	id, err := s.service.Create(r.Context(), currentUser(r), in.Draft, in.Receipt)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+id).
		JSON(map[string]string{"id": id}).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := parseTransactionRequest(r, s.maxReceiptBytes)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	defer in.Close()

	if err := s.service.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in.Draft, in.Receipt); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, log.OpDelete, store.ErrNotFound)
		return
	}
	if err := s.service.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
