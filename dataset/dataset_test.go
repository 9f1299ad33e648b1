package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"github.com/sbinet/npyio/npz"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/freeman/logging"
	"go.viam.com/freeman/ndarray"
	"go.viam.com/freeman/testutils"
)

// memLoader serves containers from memory, keyed by path. The files still have to exist on
// disk for the existence checks.
type memLoader struct {
	arrays map[string]any
	calls  int
}

func (m *memLoader) LoadArray(path string, allowHeterogeneous bool) (any, error) {
	m.calls++
	if !allowHeterogeneous {
		return nil, errors.New("heterogeneous containers disallowed")
	}
	v, ok := m.arrays[path]
	if !ok {
		return nil, errors.Errorf("no array at %q", path)
	}
	return v, nil
}

func (m *memLoader) LoadJSON(path string) (any, error) {
	m.calls++
	return nil, errors.Errorf("no json at %q", path)
}

func arr(shape []int, data ...float64) *ndarray.Array {
	a, err := ndarray.NewArray(shape, data)
	if err != nil {
		panic(err)
	}
	return a
}

// objectContainer wraps rec the way the dataset pickles every per-session dict.
func objectContainer(rec ndarray.Record) *ndarray.Array {
	return &ndarray.Array{Shape: []int{1}, DType: ndarray.ObjectDType, Objects: []any{rec}}
}

func newMemDataset(t *testing.T, sessions ...string) (*Dataset, *memLoader) {
	t.Helper()
	root := testutils.DatasetTree(t, 30, sessions...)
	loader := &memLoader{arrays: map[string]any{}}
	ds, err := New(root, 30, SplitAll, logging.NewTestLogger(t), WithArrayLoader(loader))
	test.That(t, err, test.ShouldBeNil)
	return ds, loader
}

func putRecord(t *testing.T, ds *Dataset, loader *memLoader, kind ResourceKind, session string, rec ndarray.Record) {
	t.Helper()
	path := ds.Layout().ResourcePath(kind, session)
	testutils.Touch(t, path)
	loader.arrays[path] = objectContainer(rec)
}

func TestNewErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	ds, err := New(missing, 30, SplitAll, nil)
	test.That(t, ds, test.ShouldBeNil)
	var notFound *ResourceNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, notFound.Path, test.ShouldEqual, missing)

	root := testutils.DatasetTree(t, 30, "s1")
	_, err = New(root, 0, SplitAll, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(root, 60, SplitAll, nil)
	var splitErr *SplitNotFoundError
	test.That(t, errors.As(err, &splitErr), test.ShouldBeTrue)

	file := filepath.Join(root, "file")
	testutils.Touch(t, file)
	_, err = New(file, 30, SplitAll, nil)
	test.That(t, err, test.ShouldNotBeNil)

	ds, err = New(root, 30, SplitAll, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ds.Registry().Sessions(), test.ShouldResemble, []string{"s1"})
	test.That(t, ds.Layout(), test.ShouldResemble, NewLayout(root, 30))
}

func TestUnknownSessionAndMissingFile(t *testing.T) {
	ds, loader := newMemDataset(t, "s1")

	_, err := ds.LoadMotion("s9")
	var unknown *UnknownSessionError
	test.That(t, errors.As(err, &unknown), test.ShouldBeTrue)
	test.That(t, unknown.Session, test.ShouldEqual, "s9")

	_, err = ds.LoadMotion("s1")
	var notFound *ResourceNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, notFound.Session, test.ShouldEqual, "s1")
	test.That(t, notFound.Path, test.ShouldEqual, ds.Layout().ResourcePath(KindMotions, "s1"))
	test.That(t, errors.As(err, &unknown), test.ShouldBeFalse)

	_, _, err = ds.LoadCameraGroup("s1")
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	_, err = ds.LoadBBox2D("s1")
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	_, err = ds.LoadKeypoints3D("s1", false, false)
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
	test.That(t, loader.calls, test.ShouldEqual, 0)
}

func TestDatasetVideoPath(t *testing.T) {
	ds, _ := newMemDataset(t, "s1")

	_, err := ds.VideoPath("unlisted", 0)
	var invalid *InvalidCameraError
	test.That(t, errors.As(err, &invalid), test.ShouldBeTrue)

	_, err = ds.VideoPath("unlisted", 1)
	var unknown *UnknownSessionError
	test.That(t, errors.As(err, &unknown), test.ShouldBeTrue)

	_, err = ds.VideoPath("s1", 2)
	var notFound *ResourceNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)

	want, err := ds.Layout().VideoPath("s1", 2)
	test.That(t, err, test.ShouldBeNil)
	testutils.Touch(t, want)
	got, err := ds.VideoPath("s1", 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, want)
}

func cameraJSON(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"size":        []int{1920, 1080},
		"matrix":      [][]float64{{1000, 0, 960}, {0, 1000, 540}, {0, 0, 1}},
		"rotation":    []float64{0, 0, 0},
		"translation": []float64{0.5, -1, 3},
		"distortions": [][]float64{{0.1, -0.05, 0, 0, 0.01}},
		"extra":       "kept",
	}
}

func TestLoadCameraGroup(t *testing.T) {
	root := testutils.DatasetTree(t, 30, "s1")
	layout := NewLayout(root, 30)
	records := []map[string]any{cameraJSON("c01"), cameraJSON("c02"), cameraJSON("c03")}
	testutils.WriteJSON(t, layout.ResourcePath(KindCameras, "s1"), records)

	ds, err := New(root, 30, SplitAll, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	group, params, err := ds.LoadCameraGroup("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, group.Len(), test.ShouldEqual, 3)
	test.That(t, group.Names(), test.ShouldResemble, []string{"c01", "c02", "c03"})
	test.That(t, params, test.ShouldHaveLength, 3)
	test.That(t, params[2]["extra"], test.ShouldEqual, "kept")

	cam := group.Camera(1)
	test.That(t, cam.Name, test.ShouldEqual, "c02")
	test.That(t, cam.Size, test.ShouldResemble, [2]int{1920, 1080})
	test.That(t, mat.Equal(cam.Matrix, mat.NewDense(3, 3, []float64{1000, 0, 960, 0, 1000, 540, 0, 0, 1})), test.ShouldBeTrue)
	test.That(t, cam.Translation.X, test.ShouldEqual, 0.5)
	test.That(t, cam.Translation.Y, test.ShouldEqual, -1.0)
	test.That(t, cam.Translation.Z, test.ShouldEqual, 3.0)
	test.That(t, cam.Distortion, test.ShouldResemble, []float64{0.1, -0.05, 0, 0, 0.01})
}

func TestLoadCameraGroupMalformed(t *testing.T) {
	root := testutils.DatasetTree(t, 30, "s1", "s2", "s3")
	layout := NewLayout(root, 30)

	broken := cameraJSON("c02")
	delete(broken, "rotation")
	testutils.WriteJSON(t, layout.ResourcePath(KindCameras, "s1"), []map[string]any{cameraJSON("c01"), broken})

	badMatrix := cameraJSON("c01")
	badMatrix["matrix"] = []float64{1, 2, 3}
	testutils.WriteJSON(t, layout.ResourcePath(KindCameras, "s2"), []map[string]any{badMatrix})

	testutils.WriteJSON(t, layout.ResourcePath(KindCameras, "s3"), map[string]any{"name": "c01"})

	ds, err := New(root, 30, SplitAll, nil)
	test.That(t, err, test.ShouldBeNil)

	_, _, err = ds.LoadCameraGroup("s1")
	var malformed *MalformedCameraError
	test.That(t, errors.As(err, &malformed), test.ShouldBeTrue)
	test.That(t, malformed.Index, test.ShouldEqual, 1)
	test.That(t, malformed.Field, test.ShouldEqual, "rotation")
	test.That(t, err.Error(), test.ShouldContainSubstring, "s1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "rotation")

	_, _, err = ds.LoadCameraGroup("s2")
	test.That(t, errors.As(err, &malformed), test.ShouldBeTrue)
	test.That(t, malformed.Field, test.ShouldEqual, "matrix")

	_, _, err = ds.LoadCameraGroup("s3")
	test.That(t, errors.As(err, &malformed), test.ShouldBeTrue)
	test.That(t, malformed.Index, test.ShouldEqual, -1)
}

func TestLoadKeypoints3DFallback(t *testing.T) {
	optim := arr([]int{1, 1, 3}, 1, 1, 1)
	smooth := arr([]int{1, 1, 3}, 2, 2, 2)
	smooth32 := arr([]int{1, 1, 3}, 3, 3, 3)
	raw := arr([]int{2, 1, 3}, 4, 4, 4, 5, 5, 5)

	for _, tc := range []struct {
		name      string
		rec       ndarray.Record
		useOptim  bool
		useSmooth bool
		want      Keypoints3DVariant
		missing   []string
	}{
		{
			name: "optim", rec: ndarray.Record{"keypoints3d_optim": optim, "keypoints3d": raw},
			useOptim: true, want: VariantOptimized,
		},
		{
			name: "optim wins over smooth", rec: ndarray.Record{"keypoints3d_optim": optim, "keypoints3d_smoothnet32": smooth32},
			useOptim: true, useSmooth: true, want: VariantOptimized,
		},
		{
			name: "optim never falls back", rec: ndarray.Record{"keypoints3d": raw, "keypoints3d_smoothnet": smooth},
			useOptim: true, missing: []string{"keypoints3d_optim"},
		},
		{
			name: "smooth32 first", rec: ndarray.Record{"keypoints3d_smoothnet32": smooth32, "keypoints3d_smoothnet": smooth},
			useSmooth: true, want: VariantSmoothed32,
		},
		{
			name: "smooth fallback", rec: ndarray.Record{"keypoints3d_smoothnet": smooth, "keypoints3d_optim": optim},
			useSmooth: true, want: VariantSmoothed,
		},
		{
			name: "smooth falls back to optim", rec: ndarray.Record{"keypoints3d_optim": optim, "keypoints3d": raw},
			useSmooth: true, want: VariantOptimized,
		},
		{
			name: "smooth exhausted", rec: ndarray.Record{"keypoints3d": raw},
			useSmooth: true, missing: []string{"keypoints3d_smoothnet32", "keypoints3d_smoothnet", "keypoints3d_optim"},
		},
		{
			name: "raw", rec: ndarray.Record{"keypoints3d": raw, "keypoints3d_optim": optim},
			want: VariantTriangulated,
		},
		{
			name: "raw missing", rec: ndarray.Record{"keypoints3d_optim": optim},
			missing: []string{"keypoints3d"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ds, loader := newMemDataset(t, "s1")
			putRecord(t, ds, loader, KindKeypoints3D, "s1", tc.rec)

			kp, err := ds.LoadKeypoints3D("s1", tc.useOptim, tc.useSmooth)
			if tc.missing != nil {
				var missing *MissingFieldError
				test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
				test.That(t, missing.Fields, test.ShouldResemble, tc.missing)
				test.That(t, missing.Session, test.ShouldEqual, "s1")
				return
			}
			test.That(t, err, test.ShouldBeNil)
			test.That(t, kp.Variant, test.ShouldEqual, tc.want)
			test.That(t, kp.Points, test.ShouldEqual, tc.rec[string(tc.want)])
		})
	}
}

func TestLoadKeypoints3DLogsFallback(t *testing.T) {
	root := testutils.DatasetTree(t, 30, "s1")
	loader := &memLoader{arrays: map[string]any{}}
	logger, logs := logging.NewObservedTestLogger(t)
	ds, err := New(root, 30, SplitAll, logger, WithArrayLoader(loader))
	test.That(t, err, test.ShouldBeNil)
	putRecord(t, ds, loader, KindKeypoints3D, "s1", ndarray.Record{"keypoints3d_smoothnet": arr([]int{2, 1, 3}, 1, 2, 3, 4, 5, 6)})

	kp, err := ds.LoadKeypoints3D("s1", false, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Variant, test.ShouldEqual, VariantSmoothed)
	test.That(t, kp.NumFrames(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("3D keypoint variant missing, fell back").Len(), test.ShouldEqual, 1)
}

func TestLoadMotion(t *testing.T) {
	ds, loader := newMemDataset(t, "s1", "s2")
	poses := arr([]int{2, 24, 3}, make([]float64, 144)...)
	putRecord(t, ds, loader, KindMotions, "s1", ndarray.Record{
		"smpl_poses":   poses,
		"smpl_scaling": []any{0.9},
		"smpl_transl":  arr([]int{2, 3}, 0, 0, 1, 0, 0, 2),
	})
	putRecord(t, ds, loader, KindMotions, "s2", ndarray.Record{"smpl_poses": poses})

	motion, err := ds.LoadMotion("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, motion.Poses, test.ShouldEqual, poses)
	test.That(t, motion.NumFrames(), test.ShouldEqual, 2)
	test.That(t, motion.Scaling.Data, test.ShouldResemble, []float64{0.9})
	test.That(t, motion.Translation.Shape, test.ShouldResemble, []int{2, 3})

	_, err = ds.LoadMotion("s2")
	var missing *MissingFieldError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Fields, test.ShouldResemble, []string{"smpl_scaling", "smpl_transl"})
	test.That(t, missing.Resource, test.ShouldEqual, KindMotions)
}

func writeNpy(t *testing.T, path string, m *mat.Dense) {
	t.Helper()
	test.That(t, os.MkdirAll(filepath.Dir(path), 0o750), test.ShouldBeNil)
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, npyio.Write(f, m), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
}

func TestLoadKeypoints2DFromFiles(t *testing.T) {
	root := testutils.DatasetTree(t, 30, "s1", "s2")
	layout := NewLayout(root, 30)

	w, err := npz.Create(layout.ResourcePath(KindKeypoints2D, "s1"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Write("keypoints2d", []float64{1, 2, 0.9, 3, 4, 0.8}), test.ShouldBeNil)
	test.That(t, w.Write("keypoints2d_reproj", []float64{5, 6, 1}), test.ShouldBeNil)
	test.That(t, w.Write("center", []float64{960, 540}), test.ShouldBeNil)
	test.That(t, w.Write("scale", []float64{1.5}), test.ShouldBeNil)
	test.That(t, w.Close(), test.ShouldBeNil)

	box := mat.NewDense(2, 4, []float64{10, 20, 110, 220, 12, 22, 112, 222})
	writeNpy(t, layout.ResourcePath(KindBBox2D, "s1"), box)

	ds, err := New(root, 30, SplitAll, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	kp, err := ds.LoadKeypoints2D("s1", Keypoints2DOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Keypoints.Data, test.ShouldResemble, []float64{1, 2, 0.9, 3, 4, 0.8})
	test.That(t, kp.Center.Data, test.ShouldResemble, []float64{960, 540})
	test.That(t, kp.Scale.Data, test.ShouldResemble, []float64{1.5})
	test.That(t, kp.HasBBox(), test.ShouldBeFalse)

	kp, err = ds.LoadKeypoints2D("s1", Keypoints2DOptions{Key: "keypoints2d_reproj", BBoxDir: layout.Dir(KindBBox2D)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Keypoints.Data, test.ShouldResemble, []float64{5, 6, 1})
	test.That(t, kp.HasBBox(), test.ShouldBeTrue)
	boxes, ok := kp.BBoxArray()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, boxes.Shape, test.ShouldResemble, []int{2, 4})

	_, err = ds.LoadKeypoints2D("s1", Keypoints2DOptions{Key: "keypoints2d_missing"})
	var missing *MissingFieldError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Fields, test.ShouldResemble, []string{"keypoints2d_missing"})

	_, err = ds.LoadKeypoints2D("s1", Keypoints2DOptions{BBoxDir: t.TempDir()})
	var notFound *ResourceNotFoundError
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)

	bbox, err := ds.LoadBBox2D("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bbox.(*ndarray.Array).Data, test.ShouldResemble, []float64{10, 20, 110, 220, 12, 22, 112, 222})

	_, err = ds.LoadKeypoints2D("s2", Keypoints2DOptions{})
	test.That(t, errors.As(err, &notFound), test.ShouldBeTrue)
}

func TestLoadBBox2DReturnsContainerUntouched(t *testing.T) {
	ds, loader := newMemDataset(t, "s1")
	path := ds.Layout().ResourcePath(KindBBox2D, "s1")
	testutils.Touch(t, path)

	rec := ndarray.Record{"bbox": arr([]int{1, 4}, 1, 2, 3, 4)}
	loader.arrays[path] = rec
	got, err := ds.LoadBBox2D("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, rec)

	list := []any{[]any{1.0, 2.0, 3.0, 4.0}, nil}
	loader.arrays[path] = list
	got, err = ds.LoadBBox2D("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, list)

	want := arr([]int{1, 4}, 1, 2, 3, 4)
	loader.arrays[path] = want
	got, err = ds.LoadBBox2D("s1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, want)

	loader.arrays[path] = rec
	kp2d := &Keypoints2D{}
	kp2d.BBox, err = ds.loadBBoxAt("s1", path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp2d.HasBBox(), test.ShouldBeTrue)
	_, ok := kp2d.BBoxArray()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestKeypoints3DCandidates(t *testing.T) {
	test.That(t, Keypoints3DCandidates(true, true), test.ShouldResemble, []Keypoints3DVariant{VariantOptimized})
	test.That(t, Keypoints3DCandidates(false, true), test.ShouldResemble,
		[]Keypoints3DVariant{VariantSmoothed32, VariantSmoothed, VariantOptimized})
	test.That(t, Keypoints3DCandidates(false, false), test.ShouldResemble, []Keypoints3DVariant{VariantTriangulated})
}

func TestLoadKeypoints3DDefaultOptions(t *testing.T) {
	opts := DefaultKeypoints3DOptions()
	test.That(t, opts, test.ShouldResemble, Keypoints3DOptions{UseOptim: true, UseSmooth: true})
	test.That(t, opts.Candidates(), test.ShouldResemble, []Keypoints3DVariant{VariantOptimized})

	ds, loader := newMemDataset(t, "s1")
	optim := arr([]int{1, 1, 3}, 1, 1, 1)
	putRecord(t, ds, loader, KindKeypoints3D, "s1", ndarray.Record{
		"keypoints3d":       arr([]int{1, 1, 3}, 4, 4, 4),
		"keypoints3d_optim": optim,
	})
	kp, err := ds.LoadKeypoints3DWith("s1", opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Variant, test.ShouldEqual, VariantOptimized)
	test.That(t, kp.Points, test.ShouldEqual, optim)

	kp, err = ds.LoadKeypoints3DWith("s1", Keypoints3DOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kp.Variant, test.ShouldEqual, VariantTriangulated)
}
