package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/storage"
	"github.com/colorpipe/colorpipe/internal/transform"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const defaultMaxUploadSize = 100 << 20

func uploadMediaHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
			return
		}

		maxSize := cfg.MaxUploadSize
		if maxSize <= 0 {
			maxSize = defaultMaxUploadSize
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrFileTooLarge))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "missing_file", "Please select a file to upload", http.StatusBadRequest))
			return
		}
		defer func() { _ = file.Close() }()

		// Sniff the real content type instead of trusting the client header.
		mtype, err := mimetype.DetectReader(file)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrBadRequest))
			return
		}
		if _, err := file.Seek(0, 0); err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		kind, ok := transform.KindForMIME(mtype.String())
		if !ok {
			apperror.WriteJSON(w, r, apperror.Wrap(nil, apperror.ErrUnsupportedMedia))
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext == "" {
			ext = mtype.Extension()
		}

		id := uuid.New()
		key := storage.UploadKey(claims.Subject, id.String(), ext)

		log.Info("uploading media",
			"media_id", id.String(),
			"filename", header.Filename,
			"content_type", mtype.String(),
			"size", header.Size,
		)

		if err := cfg.Artifacts.Upload(r.Context(), key, file, mtype.String(), header.Size); err != nil {
			metrics.RecordMediaUpload(kind, "error", 0)
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		item := metadata.MediaItem{
			ID:               id,
			OwnerID:          claims.Subject,
			OriginalFilename: header.Filename,
			StorageKey:       key,
			MediaType:        mtype.String(),
			UploadedAt:       time.Now().UTC(),
		}
		if err := cfg.Media.PutMedia(r.Context(), item); err != nil {
			metrics.RecordMediaUpload(kind, "error", 0)
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		metrics.RecordMediaUpload(kind, "success", header.Size)
		respondJSON(w, http.StatusCreated, item)
	}
}

func listMediaHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
			return
		}

		items, err := cfg.Media.ListMediaByOwner(r.Context(), claims.Subject)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}
		if items == nil {
			items = []metadata.MediaItem{}
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	}
}

func getMediaHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
			return
		}

		item, err := lookupOwnedMedia(r, cfg, claims)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, item)
	}
}

func downloadMediaHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
			return
		}

		item, err := lookupOwnedMedia(r, cfg, claims)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		url, err := cfg.Artifacts.GetPresignedURL(r.Context(), item.StorageKey, 3600)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

func deleteAllMediaHandler(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			apperror.WriteJSON(w, r, apperror.ErrUnauthenticated)
			return
		}

		keys, err := cfg.Media.DeleteMediaByOwner(r.Context(), claims.Subject)
		if err != nil {
			apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrInternal))
			return
		}

		// Metadata rows are gone at this point. Object deletes are best
		// effort; an orphaned object is preferable to a dangling row.
		for _, key := range keys {
			if err := cfg.Artifacts.Delete(r.Context(), key); err != nil {
				metrics.RecordStorageOperation("delete", "failure")
				log.Warn("failed to delete object", "key", key, "error", err)
				continue
			}
			metrics.RecordStorageOperation("delete", "success")
		}

		log.Info("deleted all media", "count", len(keys))
		respondJSON(w, http.StatusOK, map[string]any{"deleted": len(keys)})
	}
}

// lookupOwnedMedia resolves the {id} path value to a media item owned
// by the caller. Foreign media reads back as not found.
func lookupOwnedMedia(r *http.Request, cfg *Config, claims *auth.Claims) (*metadata.MediaItem, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, apperror.WrapWithMessage(err, "invalid_media_id", "Invalid media ID format", http.StatusBadRequest)
	}

	item, err := cfg.Media.GetMedia(r.Context(), id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrNotFound)
		}
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if item.OwnerID != claims.Subject {
		return nil, apperror.Wrap(nil, apperror.ErrNotFound)
	}
	return item, nil
}
