package metadata

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests. Safe for concurrent
// use.
type MemoryStore struct {
	mu      sync.RWMutex
	media   map[uuid.UUID]MediaItem
	filters map[uuid.UUID]FilterItem

	failNext map[string]error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		media:    make(map[uuid.UUID]MediaItem),
		filters:  make(map[uuid.UUID]FilterItem),
		failNext: make(map[string]error),
	}
}

// FailNext arranges for the next call of op ("put_media", "get_media",
// "list_media", "delete_media", "put_filter", "get_filter",
// "list_filters") to return err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *MemoryStore) takeFailure(op string) error {
	err, ok := s.failNext[op]
	if ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

func (s *MemoryStore) PutMedia(ctx context.Context, item MediaItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("put_media"); err != nil {
		return err
	}

	s.media[item.ID] = item
	return nil
}

func (s *MemoryStore) GetMedia(ctx context.Context, id uuid.UUID) (*MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("get_media"); err != nil {
		return nil, err
	}

	item, ok := s.media[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := item
	return &out, nil
}

func (s *MemoryStore) ListMediaByOwner(ctx context.Context, ownerID string) ([]MediaItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("list_media"); err != nil {
		return nil, err
	}

	var items []MediaItem
	for _, item := range s.media {
		if item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].UploadedAt.After(items[j].UploadedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items, nil
}

func (s *MemoryStore) DeleteMediaByOwner(ctx context.Context, ownerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("delete_media"); err != nil {
		return nil, err
	}

	var keys []string
	for id, item := range s.media {
		if item.OwnerID == ownerID {
			keys = append(keys, item.StorageKey)
			delete(s.media, id)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) PutFilter(ctx context.Context, item FilterItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("put_filter"); err != nil {
		return err
	}

	s.filters[item.ID] = item
	return nil
}

func (s *MemoryStore) GetFilter(ctx context.Context, id uuid.UUID) (*FilterItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("get_filter"); err != nil {
		return nil, err
	}

	item, ok := s.filters[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := item
	return &out, nil
}

func (s *MemoryStore) ListFiltersForOwner(ctx context.Context, ownerID string) ([]FilterItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("list_filters"); err != nil {
		return nil, err
	}

	var items []FilterItem
	for _, item := range s.filters {
		if item.OwnerID == nil || *item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	// Defaults first, then by name, matching the SQL ordering.
	sort.Slice(items, func(i, j int) bool {
		iOwned := items[i].OwnerID != nil
		jOwned := items[j].OwnerID != nil
		if iOwned != jOwned {
			return !iOwned
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// MediaCount returns the number of stored media rows (test helper).
func (s *MemoryStore) MediaCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.media)
}
