package api

import (
	"net/http"
	"strconv"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/google/uuid"
)

// LUT files are tiny text blobs; anything near this limit is not a LUT.
const maxFilterUploadSize = 16 << 20

func uploadFilterHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxFilterUploadSize)

		if err := r.ParseMultipartForm(4 << 20); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrFileTooLarge))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "missing_file", "Please select a LUT file to upload", http.StatusBadRequest))
			return
		}
		defer func() { _ = file.Close() }()

		name := r.FormValue("name")

		item, err := cfg.Filters.Upload(r.Context(), claims, name, header.Filename, file, header.Size)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		respondJSON(w, http.StatusCreated, item)
	}
}

func listFiltersHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())

		page, err := queryInt(r, "page", 1)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_page", "Page must be a number", http.StatusBadRequest))
			return
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_limit", "Limit must be a number", http.StatusBadRequest))
			return
		}

		result, err := cfg.Filters.List(r.Context(), claims, page, limit)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func getFilterHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "invalid_filter_id", "Invalid filter ID format", http.StatusBadRequest))
			return
		}

		item, err := cfg.Filters.Get(r.Context(), claims, id)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, item)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
