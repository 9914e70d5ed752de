package transform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/colorpipe/colorpipe/internal/logger"
)

const (
	DefaultVideoCRF     = 23
	DefaultImageQuality = 2
)

var _ Transformer = (*FFmpeg)(nil)

// FFmpeg applies a 3D LUT using the lut3d filter with tetrahedral
// interpolation.
type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) (*FFmpeg, error) {
	if path == "" {
		path = "ffmpeg"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found at %q: %w", path, err)
	}
	return &FFmpeg{path: resolved}, nil
}

func (f *FFmpeg) Apply(ctx context.Context, req Request) error {
	log := logger.FromContext(ctx)
	start := time.Now()

	args, err := buildArgs(req)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error("ffmpeg failed",
			"input", req.InputPath,
			"lut", req.LUTPath,
			"error", err,
			"output", truncate(string(output), 2048),
		)
		return fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	// Exit 0 with an empty output file still counts as failure.
	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return fmt.Errorf("%w: stat output: %v", ErrTransformFailed, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: empty output file", ErrTransformFailed)
	}

	log.Info("lut applied",
		"kind", req.Kind,
		"output_bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func buildArgs(req Request) ([]string, error) {
	if req.InputPath == "" || req.LUTPath == "" || req.OutputPath == "" {
		return nil, fmt.Errorf("%w: missing path", ErrTransformFailed)
	}

	filter := fmt.Sprintf("lut3d=file='%s':interp=tetrahedral", escapeFilterPath(req.LUTPath))
	args := []string{"-i", req.InputPath, "-vf", filter}

	switch req.Kind {
	case KindVideo:
		crf := req.VideoCRF
		if crf <= 0 {
			crf = DefaultVideoCRF
		}
		args = append(args,
			"-c:v", "libx264",
			"-crf", strconv.Itoa(crf),
			"-pix_fmt", "yuv420p",
			"-c:a", "copy",
		)
	case KindImage:
		quality := req.ImageQuality
		if quality <= 0 {
			quality = DefaultImageQuality
		}
		args = append(args, "-q:v", strconv.Itoa(quality))
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTransformFailed, req.Kind)
	}

	args = append(args, "-y", req.OutputPath)
	return args, nil
}

// escapeFilterPath quotes a path for use inside a filtergraph string.
// Backslashes, colons and single quotes are special there.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
	)
	return r.Replace(path)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
