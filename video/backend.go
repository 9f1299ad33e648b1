package video

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// ErrContainerUnopenable is the category of every failure to open a video container. It is an
// environment problem (missing codec, corrupt file) and is never retried.
var ErrContainerUnopenable = errors.New("video container cannot be opened")

// UnopenableError carries the path and cause of a failed open.
type UnopenableError struct {
	Path string
	Err  error
}

func (e *UnopenableError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrContainerUnopenable, e.Path, e.Err)
}

// Is matches ErrContainerUnopenable.
func (e *UnopenableError) Is(target error) bool {
	return target == ErrContainerUnopenable //nolint:errorlint
}

func (e *UnopenableError) Unwrap() error {
	return e.Err
}

// Backend opens video containers.
type Backend interface {
	Open(ctx context.Context, path string) (Container, error)
}

// A Container is one opened video. It is used by a single goroutine and must be closed.
type Container interface {
	// NativeFPS is the frame rate the container reports.
	NativeFPS() float64
	// SeekMillis positions the container at ms milliseconds from the start.
	SeekMillis(ms float64) error
	// DecodeNext decodes the frame at the current position and advances past it. It returns
	// io.EOF at the end of the stream.
	DecodeNext() (image.Image, error)
	Close() error
}
