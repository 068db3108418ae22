// Package api serves the tracker state over HTTP for dashboards and widgets.
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the HTTP routes with access logging.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/today", h.Today).Methods(http.MethodGet)
	v1.HandleFunc("/history", h.History).Methods(http.MethodGet)
	v1.HandleFunc("/week", h.Week).Methods(http.MethodGet)
	v1.HandleFunc("/goal", h.GetGoal).Methods(http.MethodGet)
	v1.HandleFunc("/goal", h.SetGoal).Methods(http.MethodPut)
	v1.HandleFunc("/goal", h.ResetGoal).Methods(http.MethodDelete)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	access := zap.NewStdLog(h.logger.Named("http")).Writer()
	return handlers.RecoveryHandler()(handlers.LoggingHandler(access, r))
}
