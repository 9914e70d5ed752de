package filters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/cache"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/storage"
)

func strPtr(s string) *string { return &s }

type serviceFixture struct {
	store     *metadata.MemoryStore
	cache     *cache.Memory
	artifacts *storage.MemoryStorage
	service   *Service
	claims    *auth.Claims
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		store:     metadata.NewMemoryStore(),
		cache:     cache.NewMemory(),
		artifacts: storage.NewMemoryStorage(),
		claims:    &auth.Claims{Subject: "owner-1"},
	}
	f.service = NewService(f.store, f.cache, f.artifacts, time.Hour)
	return f
}

func (f *serviceFixture) seedDefaults(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		item := metadata.FilterItem{
			ID:         uuid.New(),
			Name:       fmt.Sprintf("default-%02d", i),
			StorageKey: fmt.Sprintf("filters/d%02d.cube", i),
			FilterType: metadata.FilterTypeDefault,
		}
		if err := f.store.PutFilter(context.Background(), item); err != nil {
			t.Fatalf("PutFilter() error = %v", err)
		}
	}
}

func TestService_List_Pagination(t *testing.T) {
	f := newServiceFixture(t)
	f.seedDefaults(t, 25)
	ctx := context.Background()

	tests := []struct {
		name      string
		page      int
		limit     int
		wantCount int
		wantFirst string
	}{
		{"first page", 1, 10, 10, "default-00"},
		{"second page", 2, 10, 10, "default-10"},
		{"last partial page", 3, 10, 5, "default-20"},
		{"past the end", 4, 10, 0, ""},
		{"zero page clamps to one", 0, 10, 10, "default-00"},
		{"zero limit uses default", 1, 0, 20, "default-00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.service.List(ctx, f.claims, tt.page, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			// Totals describe the collection, not the window.
			if page.TotalItems != 25 {
				t.Errorf("TotalItems = %d, want 25", page.TotalItems)
			}
			if len(page.Items) != tt.wantCount {
				t.Errorf("len(Items) = %d, want %d", len(page.Items), tt.wantCount)
			}
			if tt.wantFirst != "" && page.Items[0].Name != tt.wantFirst {
				t.Errorf("Items[0].Name = %q, want %q", page.Items[0].Name, tt.wantFirst)
			}
			if page.Items == nil {
				t.Error("Items must be an empty slice, never nil")
			}
		})
	}
}

func TestService_List_LimitCap(t *testing.T) {
	f := newServiceFixture(t)
	f.seedDefaults(t, 3)

	page, err := f.service.List(context.Background(), f.claims, 1, 10_000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Limit != MaxPageLimit {
		t.Errorf("Limit = %d, want capped at %d", page.Limit, MaxPageLimit)
	}
}

func TestService_List_CacheAside(t *testing.T) {
	f := newServiceFixture(t)
	f.seedDefaults(t, 5)
	ctx := context.Background()

	if _, err := f.service.List(ctx, f.claims, 1, 10); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if f.cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d, want 1 after first list", f.cache.Len())
	}

	// Second call is served from cache: break the store to prove it.
	f.store.FailNext("list_filters", errors.New("db down"))
	page, err := f.service.List(ctx, f.claims, 1, 10)
	if err != nil {
		t.Fatalf("cached List() error = %v", err)
	}
	if page.TotalItems != 5 {
		t.Errorf("TotalItems = %d, want 5", page.TotalItems)
	}
}

func TestService_List_CacheFailOpen(t *testing.T) {
	f := newServiceFixture(t)
	f.seedDefaults(t, 4)
	f.cache.Broken = true

	page, err := f.service.List(context.Background(), f.claims, 1, 10)
	if err != nil {
		t.Fatalf("List() with broken cache error = %v", err)
	}
	if page.TotalItems != 4 {
		t.Errorf("TotalItems = %d, want 4", page.TotalItems)
	}
}

func TestService_List_OnlyVisibleFilters(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedDefaults(t, 2)

	mine := metadata.FilterItem{ID: uuid.New(), Name: "mine", StorageKey: "filters/owner-1/m.cube", FilterType: metadata.FilterTypeCustom, OwnerID: strPtr("owner-1")}
	theirs := metadata.FilterItem{ID: uuid.New(), Name: "theirs", StorageKey: "filters/owner-2/t.cube", FilterType: metadata.FilterTypeCustom, OwnerID: strPtr("owner-2")}
	for _, item := range []metadata.FilterItem{mine, theirs} {
		if err := f.store.PutFilter(ctx, item); err != nil {
			t.Fatalf("PutFilter() error = %v", err)
		}
	}

	page, err := f.service.List(ctx, f.claims, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3 (2 defaults + own)", page.TotalItems)
	}
	for _, item := range page.Items {
		if item.Name == "theirs" {
			t.Error("another owner's filter leaked into the listing")
		}
	}
}

func TestService_Get(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	def := metadata.FilterItem{ID: uuid.New(), Name: "shared", StorageKey: "filters/s.cube", FilterType: metadata.FilterTypeDefault}
	foreign := metadata.FilterItem{ID: uuid.New(), Name: "private", StorageKey: "filters/owner-2/p.cube", FilterType: metadata.FilterTypeCustom, OwnerID: strPtr("owner-2")}
	for _, item := range []metadata.FilterItem{def, foreign} {
		if err := f.store.PutFilter(ctx, item); err != nil {
			t.Fatalf("PutFilter() error = %v", err)
		}
	}

	if _, err := f.service.Get(ctx, f.claims, def.ID); err != nil {
		t.Errorf("Get() default filter error = %v", err)
	}

	if _, err := f.service.Get(ctx, f.claims, foreign.ID); !apperror.Is(err, apperror.ErrForbidden) {
		t.Errorf("Get() foreign filter error = %v, want forbidden", err)
	}

	if _, err := f.service.Get(ctx, f.claims, uuid.New()); !apperror.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() unknown filter error = %v, want not_found", err)
	}
}

func TestService_Upload_Admin(t *testing.T) {
	f := newServiceFixture(t)
	admin := &auth.Claims{Subject: "admin-1", Groups: []string{"admins"}}

	item, err := f.service.Upload(context.Background(), admin, "film-noir", "noir.cube", strings.NewReader("LUT_3D_SIZE 2"), 13)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if item.OwnerID != nil {
		t.Error("admin upload should produce a shared default")
	}
	if item.FilterType != metadata.FilterTypeDefault {
		t.Errorf("FilterType = %q, want %q", item.FilterType, metadata.FilterTypeDefault)
	}
	if !strings.HasPrefix(item.StorageKey, "filters/") || strings.Contains(item.StorageKey, "admin-1") {
		t.Errorf("StorageKey = %q, want shared filters/ namespace", item.StorageKey)
	}
	if _, ok := f.artifacts.GetData(item.StorageKey); !ok {
		t.Error("LUT payload not stored")
	}
}

func TestService_Upload_Regular(t *testing.T) {
	f := newServiceFixture(t)

	item, err := f.service.Upload(context.Background(), f.claims, "my-look", "look.cube", strings.NewReader("LUT_3D_SIZE 2"), 13)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if item.OwnerID == nil || *item.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %v, want owner-1", item.OwnerID)
	}
	if item.FilterType != metadata.FilterTypeCustom {
		t.Errorf("FilterType = %q, want %q", item.FilterType, metadata.FilterTypeCustom)
	}
	if !strings.Contains(item.StorageKey, "owner-1") {
		t.Errorf("StorageKey = %q, want owner-scoped key", item.StorageKey)
	}
}

func TestService_Upload_InvalidatesOwnListing(t *testing.T) {
	f := newServiceFixture(t)
	f.seedDefaults(t, 1)
	ctx := context.Background()

	if _, err := f.service.List(ctx, f.claims, 1, 10); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if _, err := f.service.Upload(ctx, f.claims, "fresh", "fresh.cube", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	page, err := f.service.List(ctx, f.claims, 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2 (upload visible immediately)", page.TotalItems)
	}
}

func TestService_Upload_RejectsNonLUT(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Upload(context.Background(), f.claims, "bad", "virus.exe", strings.NewReader("x"), 1)
	if !apperror.Is(err, apperror.ErrInvalidFileType) {
		t.Errorf("Upload() error = %v, want invalid_file_type", err)
	}
}

func TestService_Upload_StorageFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.artifacts.FailNext("upload", errors.New("minio down"))

	_, err := f.service.Upload(context.Background(), f.claims, "x", "x.cube", strings.NewReader("x"), 1)
	if !apperror.Is(err, apperror.ErrInternal) {
		t.Errorf("Upload() error = %v, want internal_error", err)
	}
}
