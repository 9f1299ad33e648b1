// Package video turns a video container and a selection of logical frame indices into a
// time-aligned sequence of images by seeking to each frame's timestamp.
package video

import (
	"context"
	"image"
	"io"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/freeman/logging"
)

// SampleOption tunes a single Sample call.
type SampleOption func(*sampleConfig)

type sampleConfig struct {
	targetFPS float64
}

// WithTargetFPS records the frame rate the caller would like to resample to. Seeking always
// uses the container's native rate, so this only shows up in logs.
func WithTargetFPS(fps float64) SampleOption {
	return func(cfg *sampleConfig) {
		cfg.targetFPS = fps
	}
}

// Sampler reads frames through a Backend. It holds no per-call state and may be shared.
type Sampler struct {
	backend Backend
	logger  logging.Logger
}

// NewSampler returns a sampler over backend.
func NewSampler(backend Backend, logger logging.Logger) *Sampler {
	if logger == nil {
		logger = logging.NewBlankLogger("video")
	}
	return &Sampler{backend: backend, logger: logger}
}

// Sample decodes the selected frames of the video at path, in request order.
//
// A path that does not exist yields no frames and no error. Frame i is read by seeking to
// i/fps seconds at the container's native fps; the first frame that fails to decode ends the
// sequence, keeping the frames read so far. When nothing was decoded the result is nil.
// A container that cannot be opened is an error matching ErrContainerUnopenable.
func (s *Sampler) Sample(
	ctx context.Context,
	path string,
	sel FrameSelection,
	opts ...SampleOption,
) (frames []image.Image, err error) {
	var cfg sampleConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := sel.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debugw("video does not exist, no frames", "path", path)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "error checking video %q", path)
	}
	if !sel.IsAll() && len(sel.indices) == 0 {
		return nil, nil
	}

	container, err := s.backend.Open(ctx, path)
	if err != nil {
		var unopenable *UnopenableError
		if errors.As(err, &unopenable) {
			return nil, err
		}
		return nil, &UnopenableError{Path: path, Err: err}
	}
	defer func() {
		if closeErr := container.Close(); closeErr != nil {
			err = multierr.Combine(err, errors.Wrapf(closeErr, "error closing video %q", path))
		}
	}()

	fps := container.NativeFPS()
	if fps <= 0 {
		return nil, &UnopenableError{Path: path, Err: errors.Errorf("invalid native fps %v", fps)}
	}
	if cfg.targetFPS > 0 && cfg.targetFPS != fps {
		s.logger.Debugw("target fps differs from native, seeking at native rate",
			"path", path, "native", fps, "target", cfg.targetFPS)
	}

	if sel.IsAll() {
		frames, err = s.decodeAll(ctx, container, path)
	} else {
		frames, err = s.decodeIndices(ctx, container, path, fps, sel.indices)
	}
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}
	return frames, nil
}

func (s *Sampler) decodeIndices(
	ctx context.Context,
	container Container,
	path string,
	fps float64,
	indices []int,
) ([]image.Image, error) {
	frames := make([]image.Image, 0, len(indices))
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := float64(idx) / fps
		if err := container.SeekMillis(t * 1000); err != nil {
			s.logger.Debugw("seek failed, stopping", "path", path, "frame", idx, "error", err)
			break
		}
		img, err := container.DecodeNext()
		if err != nil {
			s.logStop(path, idx, err)
			break
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func (s *Sampler) decodeAll(ctx context.Context, container Container, path string) ([]image.Image, error) {
	if err := container.SeekMillis(0); err != nil {
		s.logger.Debugw("seek failed, stopping", "path", path, "frame", 0, "error", err)
		return nil, nil
	}
	var frames []image.Image
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := container.DecodeNext()
		if err != nil {
			s.logStop(path, len(frames), err)
			return frames, nil
		}
		frames = append(frames, img)
	}
}

func (s *Sampler) logStop(path string, idx int, err error) {
	if errors.Is(err, io.EOF) {
		s.logger.Debugw("end of video, stopping", "path", path, "frame", idx)
		return
	}
	s.logger.Debugw("frame failed to decode, stopping", "path", path, "frame", idx, "error", err)
}
