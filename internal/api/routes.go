package api

import (
	"net/http"

	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/filters"
	"github.com/colorpipe/colorpipe/internal/health"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/pipeline"
	"github.com/colorpipe/colorpipe/internal/storage"
)

type Config struct {
	Media         metadata.Store
	Artifacts     storage.Storage
	Producer      *pipeline.Producer
	Filters       *filters.Service
	Verifier      auth.Verifier
	Checker       *health.Checker
	MaxUploadSize int64
}

func NewRouter(cfg *Config) http.Handler {
	mux := http.NewServeMux()

	if cfg.Checker != nil {
		mux.HandleFunc("GET /health", health.ReadinessHandler(cfg.Checker))
		mux.HandleFunc("GET /health/live", health.LivenessHandler())
		mux.HandleFunc("GET /health/ready", health.ReadinessHandler(cfg.Checker))
	}

	apiMux := http.NewServeMux()

	apiMux.HandleFunc("POST /api/v1/media/upload", uploadMediaHandler(cfg))
	apiMux.HandleFunc("GET /api/v1/media", listMediaHandler(cfg))
	apiMux.HandleFunc("GET /api/v1/media/{id}", getMediaHandler(cfg))
	apiMux.HandleFunc("GET /api/v1/media/download/{id}", downloadMediaHandler(cfg))
	apiMux.HandleFunc("DELETE /api/v1/media/all", deleteAllMediaHandler(cfg))

	apiMux.HandleFunc("POST /api/v1/filters/upload", uploadFilterHandler(cfg))
	apiMux.HandleFunc("GET /api/v1/filters", listFiltersHandler(cfg))
	apiMux.HandleFunc("GET /api/v1/filters/{id}", getFilterHandler(cfg))

	apiMux.HandleFunc("POST /api/v1/process", processHandler(cfg))

	mux.Handle("/api/v1/", CORS(auth.Middleware(cfg.Verifier)(apiMux)))

	return mux
}
