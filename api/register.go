package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insight-reports/export"
	"insight-reports/logging"
	"insight-reports/notification"
	"insight-reports/report"
	"insight-reports/widget"
)

// Deps regroupe tout ce que les handlers consomment.
type Deps struct {
	JWTSecret string

	Reports       *report.Store
	Executor      *report.Executor
	Engine        *export.Engine
	Exports       *export.Store
	Widgets       *widget.Store
	Notifications *notification.Store

	AccessLogger *logging.Logger
	ReportLogger *logging.Logger
	ExportLogger *logging.Logger
}

// NewRouter monte toutes les routes métier sous /insights, derrière
// l'authentification Bearer. /metrics et /healthz restent ouverts.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(AccessLog(d.AccessLogger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/insights", func(r chi.Router) {
		r.Use(RequireCaller(d.JWTSecret, d.AccessLogger))

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", ReportCreateHandler(d.Reports, d.ReportLogger))
			r.Get("/", ReportListHandler(d.Reports, d.ReportLogger))
			r.Get("/{reportID}", ReportDataHandler(d.Reports, d.Executor, d.ReportLogger))
			r.Get("/{reportID}/count", ReportCountHandler(d.Reports, d.Executor, d.ReportLogger))

			r.Post("/{reportID}/export", ExportInitiateHandler(d.Engine, d.ExportLogger))
		})

		r.Route("/exports", func(r chi.Router) {
			r.Get("/", ExportListHandler(d.Exports, d.ExportLogger))
			r.Get("/{exportID}/download", ExportDownloadHandler(d.Engine, d.Exports, d.ExportLogger))
			r.Patch("/{exportID}/viewed", ExportViewedHandler(d.Engine, d.ExportLogger))
			r.Delete("/{exportID}", ExportDeleteHandler(d.Engine, d.ExportLogger))
		})

		r.Route("/widgets", func(r chi.Router) {
			r.Post("/", WidgetCreateHandler(d.Widgets, d.ReportLogger))
			r.Get("/", WidgetListHandler(d.Widgets, d.ReportLogger))
			r.Get("/{widgetID}", WidgetDataHandler(d.Widgets, d.ReportLogger))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", NotificationCreateHandler(d.Notifications, d.AccessLogger))
			r.Get("/", NotificationListHandler(d.Notifications, d.AccessLogger))
			r.Patch("/read-all", NotificationReadAllHandler(d.Notifications, d.AccessLogger))
			r.Patch("/{id}/read", NotificationReadHandler(d.Notifications, d.AccessLogger))
			r.Patch("/{id}/clicked", NotificationClickedHandler(d.Notifications, d.AccessLogger))
			r.Delete("/{id}", NotificationDeleteHandler(d.Notifications, d.AccessLogger))
		})
	})

	return r
}
