package api

import (
	"context"
	"net/http"
	"time"

	"insight-reports/auth"
	"insight-reports/logging"
)

type contextKey string

const callerKey contextKey = "caller"

// RequireCaller extrait l'identité de l'appelant du bearer token et la
// place dans le contexte. L'identité est un attribut opaque : aucune
// décision d'autorisation n'est prise ici.
func RequireCaller(secret string, accessLogger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := auth.ExtractCaller(r, secret)
			if err != nil {
				accessLogger.Writef("UNAUTHORIZED %s %s: %v", r.Method, r.URL.Path, err)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, caller)))
		})
	}
}

// CallerFrom relit l'identité posée par RequireCaller.
func CallerFrom(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey).(string)
	return caller
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AccessLog trace chaque requête dans le journal d'accès.
func AccessLog(accessLogger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			accessLogger.Writef("%s %s status=%d duration=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
		})
	}
}
