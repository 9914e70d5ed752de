package transform

import (
	"context"
	"errors"
	"strings"
)

var ErrTransformFailed = errors.New("transform: ffmpeg failed")

const (
	KindImage = "image"
	KindVideo = "video"
)

// KindForMIME maps a MIME type to the encoder kind that handles it.
// Anything outside image/* and video/* has no kind.
func KindForMIME(mime string) (string, bool) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	case strings.HasPrefix(mime, "video/"):
		return KindVideo, true
	}
	return "", false
}

// Request describes one LUT application over a local scratch file.
type Request struct {
	InputPath  string
	LUTPath    string
	OutputPath string

	// Kind selects the encoder arguments, KindImage or KindVideo.
	Kind string

	// VideoCRF is the x264 quality for video outputs.
	VideoCRF int

	// ImageQuality is the -q:v value for image outputs.
	ImageQuality int
}

type Transformer interface {
	Apply(ctx context.Context, req Request) error
}
