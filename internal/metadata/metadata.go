package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("metadata: record not found")

const (
	// FilterTypeDefault marks a built-in LUT shared with every caller;
	// its OwnerID is always nil. FilterTypeCustom marks a caller upload.
	FilterTypeDefault = "default"
	FilterTypeCustom  = "custom"
)

// MediaItem is one uploaded or processed object. MediaType holds the
// sniffed MIME type, e.g. image/jpeg.
type MediaItem struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          string     `json:"owner_id"`
	OriginalFilename string     `json:"original_filename"`
	StorageKey       string     `json:"storage_key"`
	MediaType        string     `json:"media_type"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	IsProcessed      bool       `json:"is_processed"`
	OriginalMediaID  *uuid.UUID `json:"original_media_id,omitempty"`
}

// FilterItem describes a color-grading LUT. OwnerID is nil for the
// built-in defaults visible to every caller.
type FilterItem struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	StorageKey string    `json:"storage_key"`
	FilterType string    `json:"filter_type"`
	OwnerID    *string   `json:"owner_id,omitempty"`
}

type Store interface {
	// PutMedia upserts by ID so a redelivered job commits the same row
	// instead of a duplicate.
	PutMedia(ctx context.Context, item MediaItem) error
	GetMedia(ctx context.Context, id uuid.UUID) (*MediaItem, error)
	ListMediaByOwner(ctx context.Context, ownerID string) ([]MediaItem, error)
	// DeleteMediaByOwner removes every row for the owner and returns
	// the storage keys that backed them.
	DeleteMediaByOwner(ctx context.Context, ownerID string) ([]string, error)

	PutFilter(ctx context.Context, item FilterItem) error
	GetFilter(ctx context.Context, id uuid.UUID) (*FilterItem, error)
	// ListFiltersForOwner returns the defaults plus the owner's own
	// filters, defaults first, each group sorted by name.
	ListFiltersForOwner(ctx context.Context, ownerID string) ([]FilterItem, error)

	Ping(ctx context.Context) error
}
