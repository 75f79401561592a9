package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"insight-reports/logging"
	"insight-reports/notification"
)

// NotificationCreateHandler accepte un destinataire unique (userId) ou
// une liste (userIds).
func NotificationCreateHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			User    string   `json:"user"`
			UserID  string   `json:"userId"`
			UserIDs []string `json:"userIds"`
			Title   string   `json:"title"`
			Message string   `json:"message"`
			Type    string   `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		users := body.UserIDs
		if len(users) == 0 {
			single := body.User
			if single == "" {
				single = body.UserID
			}
			if single != "" {
				users = []string{single}
			}
		}
		if len(users) == 0 {
			writeError(w, http.StatusBadRequest, "userId or userIds is required")
			return
		}
		created, err := notifications.Create(r.Context(), users, body.Title, body.Message, body.Type)
		if err != nil {
			respondError(w, accessLogger, "create notifications", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":       "Notification(s) created",
			"notifications": created,
		})
	}
}

func NotificationListHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := notifications.List(r.Context(), queryInt(r, "page", 1), queryInt(r, "count", 10))
		if err != nil {
			respondError(w, accessLogger, "list notifications", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func NotificationReadHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notifications.MarkRead(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, accessLogger, "mark notification read", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Notification marked as read", "notification": n})
	}
}

func NotificationClickedHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notifications.MarkClicked(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, accessLogger, "mark notification clicked", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Notification marked as clicked", "notification": n})
	}
}

func NotificationReadAllHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := notifications.MarkAllRead(r.Context()); err != nil {
			respondError(w, accessLogger, "mark all notifications read", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "All notifications marked as read"})
	}
}

func NotificationDeleteHandler(notifications *notification.Store, accessLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := notifications.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, accessLogger, "delete notification", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Notification deleted"})
	}
}
