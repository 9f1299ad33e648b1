// Package dataset resolves and loads the sessions of a FreeMan multi-view motion-capture
// dataset: camera calibration, 2D and 3D keypoints, bounding boxes and SMPL motion.
//
// A Dataset is opened once per root, frame rate and split. Every loader first checks that the
// session is listed in the split and that its file exists, then reads the file through an
// ndarray.Loader. Loaders share no mutable state, so callers may run them concurrently.
package dataset

import (
	"io/fs"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/freeman/calibration"
	"go.viam.com/freeman/logging"
	"go.viam.com/freeman/ndarray"
)

// Dataset is an opened dataset root for one frame rate and split.
type Dataset struct {
	layout   Layout
	registry *Registry
	arrays   ndarray.Loader
	cameras  calibration.Builder
	logger   logging.Logger
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithArrayLoader replaces the file-backed array loader.
func WithArrayLoader(loader ndarray.Loader) Option {
	return func(ds *Dataset) {
		ds.arrays = loader
	}
}

// WithCameraBuilder replaces the default camera builder.
func WithCameraBuilder(builder calibration.Builder) Option {
	return func(ds *Dataset) {
		ds.cameras = builder
	}
}

// New opens the dataset at root. The root must exist and the split's session list must be
// readable; otherwise no Dataset is returned.
func New(root string, fps int, split Split, logger logging.Logger, opts ...Option) (*Dataset, error) {
	if fps <= 0 {
		return nil, errors.Errorf("fps must be positive, got %d", fps)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ResourceNotFoundError{Resource: "dataset root", Path: root}
		}
		return nil, errors.Wrapf(err, "error reading dataset root %q", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("dataset root %q is not a directory", root)
	}

	layout := NewLayout(root, fps)
	registry, err := LoadRegistry(layout, split)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("dataset")
	}
	ds := &Dataset{
		layout:   layout,
		registry: registry,
		arrays:   ndarray.FileLoader{},
		cameras:  calibration.DefaultBuilder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ds)
	}
	logger.Debugw("opened dataset", "root", root, "fps", fps, "split", split.String(), "sessions", registry.Len())
	return ds, nil
}

// Layout returns the path resolver.
func (ds *Dataset) Layout() Layout {
	return ds.layout
}

// Registry returns the sessions of the active split.
func (ds *Dataset) Registry() *Registry {
	return ds.registry
}

// VideoPath returns the video of one camera of a listed session. The camera index is checked
// before anything else, and a missing file is a *ResourceNotFoundError.
func (ds *Dataset) VideoPath(session string, cam int) (string, error) {
	path, err := ds.layout.VideoPath(session, cam)
	if err != nil {
		return "", err
	}
	if err := ds.checkSession(session); err != nil {
		return "", err
	}
	if err := requireFile("video", session, path); err != nil {
		return "", err
	}
	return path, nil
}

func (ds *Dataset) checkSession(session string) error {
	if !ds.registry.Contains(session) {
		return &UnknownSessionError{Session: session, Split: ds.registry.Split()}
	}
	return nil
}

// resourcePath runs the membership and existence checks every loader starts with.
func (ds *Dataset) resourcePath(kind ResourceKind, session string) (string, error) {
	if err := ds.checkSession(session); err != nil {
		return "", err
	}
	path := ds.layout.ResourcePath(kind, session)
	if err := requireFile(string(kind), session, path); err != nil {
		return "", err
	}
	return path, nil
}

func requireFile(resource, session, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ResourceNotFoundError{Resource: resource, Session: session, Path: path}
		}
		return errors.Wrapf(err, "error checking %s %q", resource, path)
	}
	return nil
}

// loadRecord reads the single-dict container holding a session's resource.
func (ds *Dataset) loadRecord(kind ResourceKind, session string) (ndarray.Record, error) {
	path, err := ds.resourcePath(kind, session)
	if err != nil {
		return nil, err
	}
	raw, err := ds.arrays.LoadArray(path, true)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %s for session %q", kind, session)
	}
	rec, err := ndarray.FirstRecord(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unexpected %s container for session %q", kind, session)
	}
	return rec, nil
}

// requireFields pulls every key out of rec as an array, reporting all absent keys at once.
func requireFields(rec ndarray.Record, session string, kind ResourceKind, keys ...string) ([]*ndarray.Array, error) {
	var missing []string
	for _, key := range keys {
		if _, ok := rec[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Session: session, Resource: kind, Fields: missing}
	}
	out := make([]*ndarray.Array, 0, len(keys))
	for _, key := range keys {
		arr, err := ndarray.AsArray(rec[key])
		if err != nil {
			return nil, errors.Wrapf(err, "field %q of %s for session %q", key, kind, session)
		}
		out = append(out, arr)
	}
	return out, nil
}
