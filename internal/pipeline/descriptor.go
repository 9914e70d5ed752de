package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/colorpipe/colorpipe/internal/storage"
	"github.com/colorpipe/colorpipe/internal/transform"
)

// JobDescriptor is the wire format of one grading job. The producer
// allocates OutputKey up front so a redelivered job overwrites its own
// output instead of creating a second one.
type JobDescriptor struct {
	OwnerID          string    `json:"owner_id"`
	MediaID          uuid.UUID `json:"media_id"`
	FilterID         uuid.UUID `json:"filter_id"`
	InputKey         string    `json:"input_key"`
	OutputKey        string    `json:"output_key"`
	LUTReference     string    `json:"lut_reference"`
	MediaKind        string    `json:"media_kind"`
	OriginalFilename string    `json:"original_filename"`
	VideoCRF         int       `json:"video_crf,omitempty"`
	ImageQuality     int       `json:"image_quality,omitempty"`
}

func (d *JobDescriptor) Validate() error {
	if d.OwnerID == "" {
		return fmt.Errorf("descriptor missing owner_id")
	}
	if d.MediaID == uuid.Nil {
		return fmt.Errorf("descriptor missing media_id")
	}
	if d.FilterID == uuid.Nil {
		return fmt.Errorf("descriptor missing filter_id")
	}
	if d.MediaKind != transform.KindImage && d.MediaKind != transform.KindVideo {
		return fmt.Errorf("descriptor has unknown media_kind %q", d.MediaKind)
	}
	if err := storage.ValidateKey(d.InputKey); err != nil {
		return fmt.Errorf("descriptor input_key: %w", err)
	}
	if err := storage.ValidateKey(d.OutputKey); err != nil {
		return fmt.Errorf("descriptor output_key: %w", err)
	}
	if err := storage.ValidateKey(d.LUTReference); err != nil {
		return fmt.Errorf("descriptor lut_reference: %w", err)
	}
	return nil
}

func (d *JobDescriptor) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDescriptor parses and validates a job payload. A payload
// that fails here is poison and must never be retried.
func UnmarshalDescriptor(body []byte) (*JobDescriptor, error) {
	var d JobDescriptor
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
