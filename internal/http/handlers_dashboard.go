package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toDashboard(view)).Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	a, err := s.board.Analytics(r.Context(), currentUser(r), year)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toAnalytics(a.YTD, a.TopCategory, a.Breakdown, a.Averages)).Write(w)
}

// handleExport downloads the filtered list as CSV, in the order the list
// endpoint returns it for the same query.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.Transactions(r.Context(), currentUser(r), parsePredicate(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(s.now())))
	if err := export.WriteCSV(w, view.Transactions); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "CSV export interrupted", "error", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transactions exported",
		log.FieldOperation, log.OpExport,
		"rows", len(view.Transactions))
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"categories":   core.RecommendedCategories(),
		"default_icon": core.DefaultCategoryIcon,
	}).Write(w)
}
