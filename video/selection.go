package video

import (
	"fmt"

	"github.com/pkg/errors"
)

// FrameSelection says which frames of a video to sample: either explicit logical frame
// indices, or every frame the container yields.
type FrameSelection struct {
	indices []int
	all     bool
}

// Indices selects the given logical frame indices, sampled in the order given.
func Indices(ids ...int) FrameSelection {
	return FrameSelection{indices: append([]int{}, ids...)}
}

// AllAvailable selects every decodable frame from the start of the stream.
func AllAvailable() FrameSelection {
	return FrameSelection{all: true}
}

// IsAll reports whether every available frame is selected.
func (s FrameSelection) IsAll() bool {
	return s.all
}

// Frames returns a copy of the selected indices; it is empty for AllAvailable.
func (s FrameSelection) Frames() []int {
	return append([]int{}, s.indices...)
}

func (s FrameSelection) String() string {
	if s.all {
		return "all"
	}
	return fmt.Sprint(s.indices)
}

func (s FrameSelection) validate() error {
	for _, idx := range s.indices {
		if idx < 0 {
			return errors.Errorf("frame index must be non-negative, got %d", idx)
		}
	}
	return nil
}
