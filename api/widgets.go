package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"insight-reports/logging"
	"insight-reports/widget"
)

func WidgetCreateHandler(widgets *widget.Store, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in widget.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := widgets.Create(r.Context(), &in)
		if err != nil {
			respondError(w, reportLogger, "create widget", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Widget created successfully: " + created.ID,
			"id":      created.ID,
		})
	}
}

func WidgetListHandler(widgets *widget.Store, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := widgets.List(r.Context())
		if err != nil {
			respondError(w, reportLogger, "list widgets", err)
			return
		}
		out := make([]map[string]any, 0, len(list))
		for _, wd := range list {
			out = append(out, map[string]any{
				"id":          wd.ID,
				"name":        wd.Widget.Name,
				"description": wd.Widget.Description,
				"type":        wd.Widget.Type,
				"xAxisLabel":  wd.Widget.XAxisLabel,
				"yAxisLabel":  wd.Widget.YAxisLabel,
				"options":     wd.Widget.Options,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// WidgetDataHandler exécute le pipeline du widget et renvoie ses
// métadonnées avec les données.
func WidgetDataHandler(widgets *widget.Store, reportLogger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		widgetID := chi.URLParam(r, "widgetID")
		wd, err := widgets.Find(r.Context(), widgetID)
		if err != nil {
			respondError(w, reportLogger, "find widget "+widgetID, err)
			return
		}
		data, err := widgets.ExecuteData(r.Context(), wd)
		if err != nil {
			respondError(w, reportLogger, "widget data "+widgetID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          wd.ID,
			"name":        wd.Widget.Name,
			"description": wd.Widget.Description,
			"type":        wd.Widget.Type,
			"xAxisLabel":  wd.Widget.XAxisLabel,
			"yAxisLabel":  wd.Widget.YAxisLabel,
			"options":     wd.Widget.Options,
			"data":        data,
		})
	}
}
