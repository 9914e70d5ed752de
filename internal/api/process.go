package api

import (
	"encoding/json"
	"net/http"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/pipeline"
)

func processHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())

		var req pipeline.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_request", "Invalid JSON request body", http.StatusBadRequest))
			return
		}

		ticket, err := cfg.Producer.Submit(r.Context(), claims, req)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		// The work happens on the consumer side; accepted only means queued.
		respondJSON(w, http.StatusAccepted, ticket)
	}
}
