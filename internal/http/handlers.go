package http

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tileglobe/internal/config"
	"tileglobe/internal/image_renderer"
	"tileglobe/internal/source_list"
)

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	sources  *source_list.Scanner
	renderer *image_renderer.Renderer
}

func New(config *config.Config, logger *zap.Logger, sources *source_list.Scanner, renderer *image_renderer.Renderer) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		sources:  sources,
		renderer: renderer,
	}
}

// Router wires every route and the middleware chain.
func (h *Handlers) Router() http.Handler {
	router := mux.NewRouter().StrictSlash(false)

	router.HandleFunc("/img/{source}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.png", h.HandleTile).
		Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/sources", h.HandleSources).Methods(http.MethodGet)
	router.HandleFunc("/api/frame", h.HandleFrame).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HandleHealthz).Methods(http.MethodGet)

	if h.config.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(h.config.StaticDir))).
			Methods(http.MethodGet, http.MethodHead)
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(h.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return h.CORSMiddleware(h.RequestLoggingMiddleware(recovery(router)))
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
