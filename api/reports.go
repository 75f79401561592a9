package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"insight-reports/logging"
	"insight-reports/report"
)

// ReportCreateHandler crée la vue de support puis la définition.
func ReportCreateHandler(reports *report.Store, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in report.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		def, err := reports.Create(r.Context(), &in)
		if err != nil {
			respondError(w, reportLogger, "create report", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Report created successfully: " + def.ID + ".",
			"id":      def.ID,
		})
	}
}

// ReportListHandler expose le schéma de chaque rapport.
func ReportListHandler(reports *report.Store, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := reports.List(r.Context())
		if err != nil {
			respondError(w, reportLogger, "list reports", err)
			return
		}
		out := make([]map[string]any, 0, len(defs))
		for _, def := range defs {
			out = append(out, map[string]any{
				"id":          def.ID,
				"name":        def.Report.Name,
				"description": def.Report.Description,
				"fields":      def.Report.Fields,
				"filters":     def.Report.Filters,
				"searchable":  def.Report.Searchable,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

// ReportDataHandler renvoie une page de données de la vue du rapport,
// avec l'enveloppe de pagination.
func ReportDataHandler(reports *report.Store, exec *report.Executor, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID := chi.URLParam(r, "reportID")
		page := queryInt(r, "page", 1)
		count := queryInt(r, "count", 10)
		if page < 1 {
			writeError(w, http.StatusBadRequest, "page must be >= 1")
			return
		}
		page, count = report.NormalizePage(page, count)

		def, err := reports.Find(r.Context(), reportID)
		if err != nil {
			respondError(w, reportLogger, "find report "+reportID, err)
			return
		}
		filter, err := report.ParseFilter(r.URL.Query().Get("filter"))
		if err != nil {
			respondError(w, reportLogger, "parse filter", err)
			return
		}

		rows, total, err := exec.Execute(r.Context(), def, filter,
			r.URL.Query().Get("select"), r.URL.Query().Get("sort"), page, count)
		if err != nil {
			respondError(w, reportLogger, "report data "+reportID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":       rows,
			"pagination": report.NewPagination(page, count, total),
		})
	}
}

// ReportCountHandler renvoie le total seul, mêmes sémantiques de filtre.
func ReportCountHandler(reports *report.Store, exec *report.Executor, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID := chi.URLParam(r, "reportID")
		def, err := reports.Find(r.Context(), reportID)
		if err != nil {
			respondError(w, reportLogger, "find report "+reportID, err)
			return
		}
		filter, err := report.ParseFilter(r.URL.Query().Get("filter"))
		if err != nil {
			respondError(w, reportLogger, "parse filter", err)
			return
		}
		total, err := exec.Count(r.Context(), def, filter)
		if err != nil {
			respondError(w, reportLogger, "report count "+reportID, err)
			return
		}
		writeJSON(w, http.StatusOK, total)
	}
}
