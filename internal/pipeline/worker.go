package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/apperror"
	"github.com/colorpipe/colorpipe/internal/logger"
	"github.com/colorpipe/colorpipe/internal/metadata"
	"github.com/colorpipe/colorpipe/internal/metrics"
	"github.com/colorpipe/colorpipe/internal/queue"
	"github.com/colorpipe/colorpipe/internal/storage"
	"github.com/colorpipe/colorpipe/internal/transform"
)

// processedNamespace seeds the deterministic ID of a processed media
// row. Deriving the ID from the output key makes a redelivered job
// upsert the same row.
var processedNamespace = uuid.MustParse("7c9baf2e-53a4-4ef3-9d8c-1f6a86b0d3c1")

type WorkerConfig struct {
	WaitTime   time.Duration
	JobTimeout time.Duration
	ScratchDir string
}

func (c *WorkerConfig) withDefaults() WorkerConfig {
	out := *c
	if out.WaitTime <= 0 {
		out.WaitTime = 20 * time.Second
	}
	if out.JobTimeout <= 0 {
		out.JobTimeout = 10 * time.Minute
	}
	if out.ScratchDir == "" {
		out.ScratchDir = os.TempDir()
	}
	return out
}

// Worker drains the job queue. Each job is fetched, transformed,
// published and committed before the queue message is acked, so a crash
// anywhere in between means redelivery, never a lost job.
type Worker struct {
	queue       queue.Queue
	store       metadata.Store
	artifacts   storage.Storage
	transformer transform.Transformer
	cfg         WorkerConfig
}

func NewWorker(q queue.Queue, store metadata.Store, artifacts storage.Storage, transformer transform.Transformer, cfg WorkerConfig) *Worker {
	return &Worker{
		queue:       q,
		store:       store,
		artifacts:   artifacts,
		transformer: transformer,
		cfg:         cfg.withDefaults(),
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("worker started", "wait_time", w.cfg.WaitTime.String())

	for {
		if err := ctx.Err(); err != nil {
			log.Info("worker stopping")
			return nil
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("receive failed, backing off", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}
		_ = processed
	}
}

// ProcessNext handles at most one message. It reports whether a message
// was received; receive-side errors are returned, per-job failures are
// handled internally through ack-or-redeliver.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	msg, err := w.queue.Receive(ctx, w.cfg.WaitTime)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	log := logger.FromContext(ctx).With("message_id", msg.ID, "deliveries", msg.Deliveries)
	ctx = logger.WithLogger(ctx, log)

	descriptor, err := UnmarshalDescriptor(msg.Body)
	if err != nil {
		// Poison: the payload will never parse, so retrying is waste.
		log.Error("dropping poison message", "error", err)
		metrics.RecordJobDeadLettered()
		if delErr := w.queue.Delete(ctx, msg.ID); delErr != nil {
			log.Error("failed to ack poison message", "error", delErr)
		}
		return true, nil
	}

	start := time.Now()
	err = w.handle(ctx, descriptor)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if apperror.IsRetryable(err) {
			// No ack; the visibility timeout will redeliver.
			log.Error("job failed, leaving for redelivery", "media_id", descriptor.MediaID, "error", err)
			metrics.RecordJobProcessed(descriptor.MediaKind, "retryable_failure", elapsed)
			return true, nil
		}

		log.Error("job failed permanently, dropping", "media_id", descriptor.MediaID, "error", err)
		metrics.RecordJobProcessed(descriptor.MediaKind, "permanent_failure", elapsed)
		metrics.RecordJobDeadLettered()
		if delErr := w.queue.Delete(ctx, msg.ID); delErr != nil {
			log.Error("failed to ack dropped message", "error", delErr)
		}
		return true, nil
	}

	// Commit happened inside handle; the ack is the last step. If it
	// fails the job reruns, which the idempotent commit absorbs.
	if err := w.queue.Delete(ctx, msg.ID); err != nil {
		log.Error("failed to ack completed job", "error", err)
	}

	metrics.RecordJobProcessed(descriptor.MediaKind, "success", elapsed)
	log.Info("job completed", "media_id", descriptor.MediaID, "output_key", descriptor.OutputKey)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, d *JobDescriptor) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	workDir, err := os.MkdirTemp(w.cfg.ScratchDir, "colorpipe-job-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	inputPath := filepath.Join(workDir, "input"+keyExt(d.InputKey))
	lutPath := filepath.Join(workDir, "filter"+keyExt(d.LUTReference))
	outputPath := filepath.Join(workDir, "output"+keyExt(d.OutputKey))

	fetchStart := time.Now()
	if err := w.fetch(ctx, d.InputKey, inputPath); err != nil {
		return err
	}
	if err := w.fetch(ctx, d.LUTReference, lutPath); err != nil {
		return err
	}
	metrics.RecordJobStage(d.MediaKind, "fetch", time.Since(fetchStart).Seconds())

	transformStart := time.Now()
	err = w.transformer.Apply(ctx, transform.Request{
		InputPath:    inputPath,
		LUTPath:      lutPath,
		OutputPath:   outputPath,
		Kind:         d.MediaKind,
		VideoCRF:     d.VideoCRF,
		ImageQuality: d.ImageQuality,
	})
	if err != nil {
		return fmt.Errorf("apply lut: %w", err)
	}
	metrics.RecordJobStage(d.MediaKind, "transform", time.Since(transformStart).Seconds())

	publishStart := time.Now()
	contentType, err := w.publish(ctx, d, outputPath)
	if err != nil {
		return err
	}
	metrics.RecordJobStage(d.MediaKind, "publish", time.Since(publishStart).Seconds())

	commitStart := time.Now()
	if err := w.commit(ctx, d, contentType); err != nil {
		return err
	}
	metrics.RecordJobStage(d.MediaKind, "commit", time.Since(commitStart).Seconds())

	return nil
}

func (w *Worker) fetch(ctx context.Context, key, dest string) error {
	rc, err := w.artifacts.Download(ctx, key)
	if err != nil {
		// A missing artifact is left for redelivery like any other fetch
		// failure; the delivery limit dead-letters it if it never shows up.
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(rc); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// publish uploads the transformed file and returns its sniffed MIME
// type, which the commit records as the row's media_type.
func (w *Worker) publish(ctx context.Context, d *JobDescriptor, outputPath string) (string, error) {
	f, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat output: %w", err)
	}

	contentType := detectContentType(outputPath)

	if err := w.artifacts.Upload(ctx, d.OutputKey, f, contentType, info.Size()); err != nil {
		metrics.RecordStorageOperation("upload", "failure")
		return "", fmt.Errorf("publish output: %w", err)
	}
	metrics.RecordStorageOperation("upload", "success")
	return contentType, nil
}

func (w *Worker) commit(ctx context.Context, d *JobDescriptor, contentType string) error {
	item := metadata.MediaItem{
		ID:               uuid.NewSHA1(processedNamespace, []byte(d.OutputKey)),
		OwnerID:          d.OwnerID,
		OriginalFilename: processedFilename(d.OriginalFilename),
		StorageKey:       d.OutputKey,
		MediaType:        contentType,
		UploadedAt:       time.Now().UTC(),
		IsProcessed:      true,
		OriginalMediaID:  &d.MediaID,
	}

	if err := w.store.PutMedia(ctx, item); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

func keyExt(key string) string {
	return strings.ToLower(filepath.Ext(key))
}

func processedFilename(original string) string {
	ext := filepath.Ext(original)
	stem := strings.TrimSuffix(original, ext)
	if stem == "" {
		stem = "output"
	}
	return stem + "_processed" + ext
}

func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
