package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"insight-reports/export"
	"insight-reports/logging"
)

// ExportInitiateHandler enregistre le job et répond 202 sans attendre
// le traitement.
func ExportInitiateHandler(engine *export.Engine, exportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID := chi.URLParam(r, "reportID")
		var body struct {
			Filter map[string]any `json:"filter"`
			Format string         `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		job, err := engine.Initiate(r.Context(), reportID, body.Filter, body.Format, CallerFrom(r.Context()))
		if err != nil {
			respondError(w, exportLogger, "initiate export "+reportID, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"exportId": job.ID,
			"status":   job.Status,
		})
	}
}

// ExportListHandler liste les jobs de l'appelant, les plus récents
// d'abord.
func ExportListHandler(jobs *export.Store, exportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		count := queryInt(r, "count", 10)
		if page < 1 {
			page = 1
		}
		if count < 1 {
			count = 10
		}

		query := bson.M{
			"user":              CallerFrom(r.Context()),
			"_metadata.deleted": false,
		}
		list, err := jobs.Find(r.Context(), query,
			bson.D{{Key: "_metadata.createdAt", Value: -1}},
			int64((page-1)*count), int64(count), nil)
		if err != nil {
			respondError(w, exportLogger, "list exports", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ExportDownloadHandler streame l'archive d'un job Completed. Un job
// pas encore terminal répond 409, un export vide répond 204.
func ExportDownloadHandler(engine *export.Engine, jobs *export.Store, exportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exportID := chi.URLParam(r, "exportID")
		job, err := jobs.FindByID(r.Context(), exportID)
		if err != nil {
			respondError(w, exportLogger, "find export "+exportID, err)
			return
		}
		if job.Metadata.Deleted {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		if job.Status != export.StatusCompleted {
			writeJSON(w, http.StatusConflict, map[string]any{
				"message": "export is not ready",
				"status":  job.Status,
			})
			return
		}
		if job.RecordCount == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		path := engine.ArtifactPath(job)
		if _, err := os.Stat(path); err != nil {
			writeError(w, http.StatusNotFound, "export artifact no longer available")
			return
		}

		contentType := "application/zip"
		if job.Format == export.FormatXLSX {
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		exportLogger.Writef("[DOWNLOAD] id=%s user=%s file=%s", job.ID, CallerFrom(r.Context()), job.FileName)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
		http.ServeFile(w, r, path)
	}
}

// ExportViewedHandler pose le drapeau viewed et repousse l'expiration
// de la fenêtre de rétention fournie (défaut : 7 jours).
func ExportViewedHandler(engine *export.Engine, exportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exportID := chi.URLParam(r, "exportID")
		var body struct {
			RetentionDays int `json:"retentionDays"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		job, err := engine.MarkViewed(r.Context(), exportID, body.RetentionDays)
		if err != nil {
			respondError(w, exportLogger, "mark viewed "+exportID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "export marked as viewed",
			"exportId":  job.ID,
			"expiresAt": job.Metadata.ExpiresAt,
		})
	}
}

// ExportDeleteHandler supprime logiquement le job et son artefact.
func ExportDeleteHandler(engine *export.Engine, exportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exportID := chi.URLParam(r, "exportID")
		if err := engine.Delete(r.Context(), exportID); err != nil {
			respondError(w, exportLogger, "delete export "+exportID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "export deleted"})
	}
}
