package dataset

import (
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/freeman/ndarray"
)

// DefaultKeypoints2DKey is the container key holding the 2D keypoints.
const DefaultKeypoints2DKey = "keypoints2d"

// Keypoints2DOptions tunes LoadKeypoints2D.
type Keypoints2DOptions struct {
	// Key overrides DefaultKeypoints2DKey, e.g. to read reprojected keypoints.
	Key string
	// BBoxDir, when set, also loads {BBoxDir}/{session}.npy into Keypoints2D.BBox.
	// Layout.Dir(KindBBox2D) is the dataset's own box directory.
	BBoxDir string
}

// Keypoints2D holds (views, frames, joints, 3) keypoints as (x, y, confidence), the
// per-sequence center and scale, and the boxes when they were requested. BBox is whatever
// the box file decoded to, see LoadBBox2D.
type Keypoints2D struct {
	Keypoints *ndarray.Array
	Center    *ndarray.Array
	Scale     *ndarray.Array
	BBox      any
}

// HasBBox reports whether boxes were loaded.
func (k *Keypoints2D) HasBBox() bool {
	return k.BBox != nil
}

// BBoxArray returns the boxes when they decoded to a single array.
func (k *Keypoints2D) BBoxArray() (*ndarray.Array, bool) {
	arr, ok := k.BBox.(*ndarray.Array)
	return arr, ok && arr != nil
}

// LoadBBox2D reads {bbox2d}/{session}.npy and returns it untouched: an *ndarray.Array for a
// plain .npy, an ndarray.Record for an archive, or the decoded pickle value.
func (ds *Dataset) LoadBBox2D(session string) (any, error) {
	path, err := ds.resourcePath(KindBBox2D, session)
	if err != nil {
		return nil, err
	}
	return ds.loadBBoxAt(session, path)
}

func (ds *Dataset) loadBBoxAt(session, path string) (any, error) {
	raw, err := ds.arrays.LoadArray(path, true)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading boxes for session %q", session)
	}
	return raw, nil
}

// LoadKeypoints2D reads {keypoints2d}/{session}.npy.
func (ds *Dataset) LoadKeypoints2D(session string, opts Keypoints2DOptions) (*Keypoints2D, error) {
	key := opts.Key
	if key == "" {
		key = DefaultKeypoints2DKey
	}
	rec, err := ds.loadRecord(KindKeypoints2D, session)
	if err != nil {
		return nil, err
	}
	fields, err := requireFields(rec, session, KindKeypoints2D, key, "center", "scale")
	if err != nil {
		return nil, err
	}
	result := &Keypoints2D{Keypoints: fields[0], Center: fields[1], Scale: fields[2]}

	if opts.BBoxDir != "" {
		path := filepath.Join(opts.BBoxDir, session+".npy")
		if err := requireFile(string(KindBBox2D), session, path); err != nil {
			return nil, err
		}
		if result.BBox, err = ds.loadBBoxAt(session, path); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Keypoints3DVariant names one upstream post-processing output of the 3D keypoints.
type Keypoints3DVariant string

// The 3D keypoint variants, keyed as in the container.
const (
	VariantTriangulated Keypoints3DVariant = "keypoints3d"
	VariantSmoothed     Keypoints3DVariant = "keypoints3d_smoothnet"
	VariantSmoothed32   Keypoints3DVariant = "keypoints3d_smoothnet32"
	VariantOptimized    Keypoints3DVariant = "keypoints3d_optim"
)

// Keypoints3D is a (frames, joints, 3) sequence and the variant it came from.
type Keypoints3D struct {
	Variant Keypoints3DVariant
	Points  *ndarray.Array
}

// NumFrames is the length of the sequence.
func (k *Keypoints3D) NumFrames() int {
	if k.Points == nil || len(k.Points.Shape) == 0 {
		return 0
	}
	return k.Points.Shape[0]
}

// Keypoints3DCandidates lists, in priority order, the variants LoadKeypoints3D tries:
// useOptim takes only the optimized variant; otherwise useSmooth tries the 32-frame window
// smoothing, then plain smoothing, then the optimized variant; otherwise only the raw
// triangulation is used.
func Keypoints3DCandidates(useOptim, useSmooth bool) []Keypoints3DVariant {
	switch {
	case useOptim:
		return []Keypoints3DVariant{VariantOptimized}
	case useSmooth:
		return []Keypoints3DVariant{VariantSmoothed32, VariantSmoothed, VariantOptimized}
	default:
		return []Keypoints3DVariant{VariantTriangulated}
	}
}

// Keypoints3DOptions picks which 3D keypoint variant LoadKeypoints3DWith prefers.
type Keypoints3DOptions struct {
	// UseOptim takes only the optimized variant.
	UseOptim bool
	// UseSmooth prefers the smoothed variants, falling back to the optimized one.
	UseSmooth bool
}

// DefaultKeypoints3DOptions prefers the optimized and smoothed keypoints.
func DefaultKeypoints3DOptions() Keypoints3DOptions {
	return Keypoints3DOptions{UseOptim: true, UseSmooth: true}
}

// Candidates is Keypoints3DCandidates for these options.
func (o Keypoints3DOptions) Candidates() []Keypoints3DVariant {
	return Keypoints3DCandidates(o.UseOptim, o.UseSmooth)
}

// LoadKeypoints3D reads {keypoints3d}/{session}.npy and returns the first variant present among
// Keypoints3DCandidates(useOptim, useSmooth).
func (ds *Dataset) LoadKeypoints3D(session string, useOptim, useSmooth bool) (*Keypoints3D, error) {
	return ds.LoadKeypoints3DWith(session, Keypoints3DOptions{UseOptim: useOptim, UseSmooth: useSmooth})
}

// LoadKeypoints3DWith is LoadKeypoints3D driven by options; pass DefaultKeypoints3DOptions() for
// the usual optimized keypoints.
func (ds *Dataset) LoadKeypoints3DWith(session string, opts Keypoints3DOptions) (*Keypoints3D, error) {
	rec, err := ds.loadRecord(KindKeypoints3D, session)
	if err != nil {
		return nil, err
	}
	candidates := opts.Candidates()
	for i, variant := range candidates {
		v, ok := rec[string(variant)]
		if !ok {
			continue
		}
		points, err := ndarray.AsArray(v)
		if err != nil {
			return nil, errors.Wrapf(err, "variant %q for session %q", variant, session)
		}
		if i > 0 {
			ds.logger.Debugw("3D keypoint variant missing, fell back",
				"session", session, "wanted", candidates[0], "using", variant)
		}
		return &Keypoints3D{Variant: variant, Points: points}, nil
	}
	fields := make([]string, len(candidates))
	for i, c := range candidates {
		fields[i] = string(c)
	}
	return nil, &MissingFieldError{Session: session, Resource: KindKeypoints3D, Fields: fields}
}
