// Package gateway is a thin HTTP introspection surface over a
// registry of compiled pipelines, built on go-chi/chi.
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tarungka/streamcore/internal/logger"
)

// Run starts the gateway's HTTP server on port, serving reg's
// registered pipelines. It blocks until the server stops.
func Run(port string, reg *Registry) error {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)

	router.Mount("/pipelines", PipelineRouter(reg))

	log := logger.Component("gateway")
	log.Info().Str("port", port).Msg("gateway listening")
	return http.ListenAndServe(":"+port, router)
}
