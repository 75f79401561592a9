package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"insight-reports/export"
	"insight-reports/logging"
	"insight-reports/notification"
	"insight-reports/report"
	"insight-reports/widget"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message, "code": status})
}

// respondError applique la taxonomie : 404 pour les identifiants
// inconnus, 400 pour les entrées client invalides, 500 (journalisé,
// jamais rejoué) pour le reste.
func respondError(w http.ResponseWriter, logger *logging.Logger, context string, err error) {
	switch {
	case errors.Is(err, report.ErrNotFound),
		errors.Is(err, export.ErrNotFound),
		errors.Is(err, widget.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrBadFilter),
		errors.Is(err, report.ErrValidation),
		errors.Is(err, widget.ErrValidation),
		errors.Is(err, export.ErrBadFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Writef("[ERROR] %s: %v", context, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
