package filters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/cache"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/storage"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	lutExtension = ".cube"
)

// Page is one window over a caller's visible filters. TotalItems always
// counts the whole collection, not the window.
type Page struct {
	TotalItems int                   `json:"total_items"`
	Items      []metadata.FilterItem `json:"items"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
}

type Service struct {
	store     metadata.Store
	cache     cache.Cache
	artifacts storage.Storage
	ttl       time.Duration
}

func NewService(store metadata.Store, c cache.Cache, artifacts storage.Storage, ttl time.Duration) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{store: store, cache: c, artifacts: artifacts, ttl: ttl}
}

func cacheKey(ownerID string) string {
	return "filters:" + ownerID
}

// List serves the caller's filters cache-aside: the full visible list
// is cached per owner and pagination is applied after the fact, so
// total_items never depends on the requested window.
func (s *Service) List(ctx context.Context, claims *auth.Claims, page, limit int) (*Page, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperror.ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	items, err := s.visibleFilters(ctx, claims.Subject)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}

	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	window := items[start:end]
	if window == nil {
		window = []metadata.FilterItem{}
	}

	return &Page{
		TotalItems: total,
		Items:      window,
		Page:       page,
		Limit:      limit,
	}, nil
}

func (s *Service) visibleFilters(ctx context.Context, ownerID string) ([]metadata.FilterItem, error) {
	log := logger.FromContext(ctx)
	key := cacheKey(ownerID)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var items []metadata.FilterItem
		if err := json.Unmarshal(raw, &items); err == nil {
			metrics.RecordFilterCache("hit")
			return items, nil
		}
		// Corrupt entry; fall through to the store.
		log.Warn("discarding corrupt filter cache entry", "key", key)
		s.cache.Delete(ctx, key)
	}
	metrics.RecordFilterCache("miss")

	items, err := s.store.ListFiltersForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	if items == nil {
		items = []metadata.FilterItem{}
	}

	if raw, err := json.Marshal(items); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return items, nil
}

// Get returns a filter the caller may use: a shared default or one of
// their own. Someone else's filter is forbidden, not hidden.
func (s *Service) Get(ctx context.Context, claims *auth.Claims, id uuid.UUID) (*metadata.FilterItem, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperror.ErrUnauthenticated
	}

	item, err := s.store.GetFilter(ctx, id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if item.OwnerID != nil && *item.OwnerID != claims.Subject {
		return nil, apperror.ErrForbidden
	}
	return item, nil
}

// Upload stores a new LUT. Admins publish shared defaults; everyone
// else gets a personal filter.
func (s *Service) Upload(ctx context.Context, claims *auth.Claims, name, filename string, r io.Reader, size int64) (*metadata.FilterItem, error) {
	log := logger.FromContext(ctx)

	if claims == nil || claims.Subject == "" {
		return nil, apperror.ErrUnauthenticated
	}
	if name == "" {
		return nil, apperror.ErrBadRequest
	}
	if strings.ToLower(filepath.Ext(filename)) != lutExtension {
		return nil, apperror.ErrInvalidFileType
	}

	// Admin uploads are shared defaults: no owner, default type. A
	// custom filter always carries its owner.
	id := uuid.New()
	var key string
	var ownerID *string
	filterType := metadata.FilterTypeDefault
	if !claims.IsAdmin() {
		filterType = metadata.FilterTypeCustom
		subject := claims.Subject
		ownerID = &subject
	}
	if ownerID == nil {
		key = storage.FilterKey(id.String(), lutExtension)
	} else {
		key = storage.OwnerFilterKey(claims.Subject, id.String(), lutExtension)
	}

	if err := s.artifacts.Upload(ctx, key, r, "application/octet-stream", size); err != nil {
		metrics.RecordStorageOperation("upload", "failure")
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	metrics.RecordStorageOperation("upload", "success")

	item := metadata.FilterItem{
		ID:         id,
		Name:       name,
		StorageKey: key,
		FilterType: filterType,
		OwnerID:    ownerID,
	}
	if err := s.store.PutFilter(ctx, item); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}

	// A shared default changes every owner's listing; those entries age
	// out with the TTL. The uploader sees their own change at once.
	s.cache.Delete(ctx, cacheKey(claims.Subject))

	log.Info("filter uploaded", "filter_id", id, "name", name, "shared", ownerID == nil)
	return &item, nil
}
