package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/auth"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/queue"
	"github.com/colorpipe/colorpipe/internal/storage"
	"github.com/colorpipe/colorpipe/internal/transform"
)

const submitAcceptedMessage = "Processing started. The result will appear in your media library."

type SubmitRequest struct {
	MediaID  uuid.UUID `json:"media_id"`
	FilterID uuid.UUID `json:"filter_id"`
}

// Ticket acknowledges an accepted job. TaskID identifies the queue
// message, not the eventual output.
type Ticket struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type ProducerConfig struct {
	VideoCRF     int
	ImageQuality int
}

// Producer validates a grading request and enqueues its descriptor.
// Nothing is written to the metadata store here; the consumer commits
// the result.
type Producer struct {
	store metadata.Store
	queue queue.Queue
	cfg   ProducerConfig
}

func NewProducer(store metadata.Store, q queue.Queue, cfg ProducerConfig) *Producer {
	return &Producer{store: store, queue: q, cfg: cfg}
}

func (p *Producer) Submit(ctx context.Context, claims *auth.Claims, req SubmitRequest) (*Ticket, error) {
	log := logger.FromContext(ctx)

	if claims == nil || claims.Subject == "" {
		return nil, apperror.ErrUnauthenticated
	}
	if req.MediaID == uuid.Nil || req.FilterID == uuid.Nil {
		return nil, apperror.ErrBadRequest
	}

	media, err := p.store.GetMedia(ctx, req.MediaID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	if media.OwnerID != claims.Subject {
		// The media exists but belongs to someone else.
		return nil, apperror.ErrForbidden
	}
	kind, ok := transform.KindForMIME(media.MediaType)
	if !ok {
		return nil, apperror.ErrUnsupportedMedia
	}

	filter, err := p.store.GetFilter(ctx, req.FilterID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}
	// Only shared defaults and the caller's own filters may be used.
	if filter.OwnerID != nil && *filter.OwnerID != claims.Subject {
		return nil, apperror.ErrForbidden
	}

	ext := strings.ToLower(filepath.Ext(media.OriginalFilename))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(media.StorageKey))
	}

	descriptor := &JobDescriptor{
		OwnerID:          claims.Subject,
		MediaID:          media.ID,
		FilterID:         filter.ID,
		InputKey:         media.StorageKey,
		OutputKey:        storage.ProcessedKey(claims.Subject, uuid.NewString(), ext),
		LUTReference:     filter.StorageKey,
		MediaKind:        kind,
		OriginalFilename: media.OriginalFilename,
		VideoCRF:         p.cfg.VideoCRF,
		ImageQuality:     p.cfg.ImageQuality,
	}

	body, err := descriptor.Marshal()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrInternal)
	}

	taskID, err := p.queue.Enqueue(ctx, body)
	if err != nil {
		log.Error("enqueue failed", "media_id", media.ID, "error", err)
		return nil, apperror.Wrap(err, apperror.ErrQueueUnavailable)
	}

	metrics.RecordJobEnqueued()
	log.Info("grading job accepted",
		"task_id", taskID,
		"media_id", media.ID,
		"filter_id", filter.ID,
		"output_key", descriptor.OutputKey,
	)

	return &Ticket{Message: submitAcceptedMessage, TaskID: taskID}, nil
}
