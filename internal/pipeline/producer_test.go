package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/queue"
	"github.com/colorpipe/colorpipe/internal/transform"
)

func strPtr(s string) *string { return &s }

type producerFixture struct {
	store    *metadata.MemoryStore
	queue    *queue.MemoryQueue
	producer *Producer

	media  metadata.MediaItem
	filter metadata.FilterItem
	claims *auth.Claims
}

func newProducerFixture(t *testing.T) *producerFixture {
	t.Helper()
	ctx := context.Background()

	store := metadata.NewMemoryStore()
	q := queue.NewMemoryQueue(queue.Options{})

	media := metadata.MediaItem{
		ID:               uuid.New(),
		OwnerID:          "owner-1",
		OriginalFilename: "sunset.mp4",
		StorageKey:       "uploads/owner-1/abc.mp4",
		MediaType:        "video/mp4",
		UploadedAt:       time.Now().UTC(),
	}
	if err := store.PutMedia(ctx, media); err != nil {
		t.Fatalf("PutMedia() error = %v", err)
	}

	filter := metadata.FilterItem{
		ID:         uuid.New(),
		Name:       "teal-orange",
		StorageKey: "filters/teal-orange.cube",
		FilterType: metadata.FilterTypeDefault,
	}
	if err := store.PutFilter(ctx, filter); err != nil {
		t.Fatalf("PutFilter() error = %v", err)
	}

	return &producerFixture{
		store:    store,
		queue:    q,
		producer: NewProducer(store, q, ProducerConfig{VideoCRF: 18, ImageQuality: 2}),
		media:    media,
		filter:   filter,
		claims:   &auth.Claims{Subject: "owner-1", Username: "alice"},
	}
}

func TestProducer_Submit(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	ticket, err := f.producer.Submit(ctx, f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: f.filter.ID})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ticket.TaskID == "" {
		t.Error("ticket should carry a task id")
	}
	if ticket.Message == "" {
		t.Error("ticket should carry a human message")
	}

	msg, err := f.queue.Receive(ctx, 0)
	if err != nil || msg == nil {
		t.Fatalf("Receive() = %+v, %v", msg, err)
	}
	if msg.ID != ticket.TaskID {
		t.Errorf("task id %q should match queue message id %q", ticket.TaskID, msg.ID)
	}

	d, err := UnmarshalDescriptor(msg.Body)
	if err != nil {
		t.Fatalf("UnmarshalDescriptor() error = %v", err)
	}
	if d.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q", d.OwnerID)
	}
	if d.InputKey != f.media.StorageKey {
		t.Errorf("InputKey = %q, want %q", d.InputKey, f.media.StorageKey)
	}
	if d.LUTReference != f.filter.StorageKey {
		t.Errorf("LUTReference = %q, want %q", d.LUTReference, f.filter.StorageKey)
	}
	if !strings.HasPrefix(d.OutputKey, "processed/owner-1/") || !strings.HasSuffix(d.OutputKey, ".mp4") {
		t.Errorf("OutputKey = %q, want processed/owner-1/<id>.mp4", d.OutputKey)
	}
	if d.MediaKind != transform.KindVideo {
		t.Errorf("MediaKind = %q", d.MediaKind)
	}
	if d.VideoCRF != 18 {
		t.Errorf("VideoCRF = %d, want 18", d.VideoCRF)
	}
}

func TestProducer_Submit_MediaNotFound(t *testing.T) {
	f := newProducerFixture(t)

	_, err := f.producer.Submit(context.Background(), f.claims, SubmitRequest{MediaID: uuid.New(), FilterID: f.filter.ID})
	if !apperror.Is(err, apperror.ErrNotFound) {
		t.Errorf("Submit() error = %v, want not_found", err)
	}
	if f.queue.Len() != 0 {
		t.Error("nothing should be enqueued on failure")
	}
}

func TestProducer_Submit_ForeignMediaForbidden(t *testing.T) {
	f := newProducerFixture(t)
	stranger := &auth.Claims{Subject: "owner-2"}

	_, err := f.producer.Submit(context.Background(), stranger, SubmitRequest{MediaID: f.media.ID, FilterID: f.filter.ID})
	if !apperror.Is(err, apperror.ErrForbidden) {
		t.Errorf("Submit() error = %v, want forbidden", err)
	}
	if f.queue.Len() != 0 {
		t.Error("ownership is checked before anything is enqueued")
	}
}

func TestProducer_Submit_FilterNotFound(t *testing.T) {
	f := newProducerFixture(t)

	_, err := f.producer.Submit(context.Background(), f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: uuid.New()})
	if !apperror.Is(err, apperror.ErrNotFound) {
		t.Errorf("Submit() error = %v, want not_found", err)
	}
}

func TestProducer_Submit_ForeignFilterForbidden(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	foreign := metadata.FilterItem{
		ID:         uuid.New(),
		Name:       "private",
		StorageKey: "filters/owner-2/private.cube",
		FilterType: metadata.FilterTypeCustom,
		OwnerID:    strPtr("owner-2"),
	}
	if err := f.store.PutFilter(ctx, foreign); err != nil {
		t.Fatalf("PutFilter() error = %v", err)
	}

	_, err := f.producer.Submit(ctx, f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: foreign.ID})
	if !apperror.Is(err, apperror.ErrForbidden) {
		t.Errorf("Submit() foreign filter error = %v, want forbidden", err)
	}
	if f.queue.Len() != 0 {
		t.Error("nothing should be enqueued for a forbidden filter")
	}
}

func TestProducer_Submit_UnsupportedMediaType(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	doc := metadata.MediaItem{
		ID:               uuid.New(),
		OwnerID:          "owner-1",
		OriginalFilename: "notes.pdf",
		StorageKey:       "uploads/owner-1/notes.pdf",
		MediaType:        "application/pdf",
		UploadedAt:       time.Now().UTC(),
	}
	if err := f.store.PutMedia(ctx, doc); err != nil {
		t.Fatalf("PutMedia() error = %v", err)
	}

	_, err := f.producer.Submit(ctx, f.claims, SubmitRequest{MediaID: doc.ID, FilterID: f.filter.ID})
	if !apperror.Is(err, apperror.ErrUnsupportedMedia) {
		t.Errorf("Submit() error = %v, want unsupported_media_type", err)
	}
}

func TestProducer_Submit_OwnedFilterAllowed(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	owned := metadata.FilterItem{
		ID:         uuid.New(),
		Name:       "mine",
		StorageKey: "filters/owner-1/mine.cube",
		FilterType: metadata.FilterTypeCustom,
		OwnerID:    strPtr("owner-1"),
	}
	if err := f.store.PutFilter(ctx, owned); err != nil {
		t.Fatalf("PutFilter() error = %v", err)
	}

	if _, err := f.producer.Submit(ctx, f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: owned.ID}); err != nil {
		t.Errorf("Submit() with owned filter error = %v", err)
	}
}

func TestProducer_Submit_QueueUnavailable(t *testing.T) {
	f := newProducerFixture(t)
	f.queue.EnqueueErr = errors.New("connection refused")

	_, err := f.producer.Submit(context.Background(), f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: f.filter.ID})
	if !apperror.Is(err, apperror.ErrQueueUnavailable) {
		t.Errorf("Submit() error = %v, want queue_unavailable", err)
	}
	if apperror.StatusCode(err) != 503 {
		t.Errorf("StatusCode = %d, want 503", apperror.StatusCode(err))
	}
}

func TestProducer_Submit_BadRequest(t *testing.T) {
	f := newProducerFixture(t)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"zero media id", SubmitRequest{FilterID: f.filter.ID}},
		{"zero filter id", SubmitRequest{MediaID: f.media.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.producer.Submit(context.Background(), f.claims, tt.req)
			if !apperror.Is(err, apperror.ErrBadRequest) {
				t.Errorf("Submit() error = %v, want bad_request", err)
			}
		})
	}
}

func TestProducer_Submit_DistinctOutputKeys(t *testing.T) {
	f := newProducerFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		if _, err := f.producer.Submit(ctx, f.claims, SubmitRequest{MediaID: f.media.ID, FilterID: f.filter.ID}); err != nil {
			t.Fatalf("Submit() #%d error = %v", i, err)
		}
		msg, err := f.queue.Receive(ctx, 0)
		if err != nil || msg == nil {
			t.Fatalf("Receive() = %+v, %v", msg, err)
		}
		d, err := UnmarshalDescriptor(msg.Body)
		if err != nil {
			t.Fatalf("UnmarshalDescriptor() error = %v", err)
		}
		if seen[d.OutputKey] {
			t.Errorf("output key %q reused across submissions", d.OutputKey)
		}
		seen[d.OutputKey] = true
	}
}
