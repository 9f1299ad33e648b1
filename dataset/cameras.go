package dataset

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/freeman/calibration"
	"go.viam.com/freeman/ndarray"
)

// cameraFields are required in every camera record, in the order they are checked.
var cameraFields = []string{"name", "size", "matrix", "rotation", "translation", "distortions"}

type cameraRecord struct {
	Name        string `json:"name"`
	Size        []int  `json:"size"`
	Matrix      any    `json:"matrix"`
	Rotation    any    `json:"rotation"`
	Translation any    `json:"translation"`
	Distortions any    `json:"distortions"`
}

// LoadCameraGroup reads {cameras}/{session}.json and builds one camera per record, in file
// order. The raw records are returned alongside for fields the Camera does not model.
func (ds *Dataset) LoadCameraGroup(session string) (*calibration.CameraGroup, []ndarray.Record, error) {
	path, err := ds.resourcePath(KindCameras, session)
	if err != nil {
		return nil, nil, err
	}
	raw, err := ds.arrays.LoadJSON(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error loading cameras for session %q", session)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, nil, &MalformedCameraError{Session: session, Index: -1, Reason: "expected a list of camera records"}
	}

	cams := make([]*calibration.Camera, 0, len(items))
	params := make([]ndarray.Record, 0, len(items))
	for i, item := range items {
		rec, err := asRecord(item)
		if err != nil {
			return nil, nil, &MalformedCameraError{Session: session, Index: i, Reason: err.Error()}
		}
		cam, err := ds.buildCamera(session, i, rec)
		if err != nil {
			return nil, nil, err
		}
		cams = append(cams, cam)
		params = append(params, rec)
	}
	group, err := ds.cameras.BuildGroup(cams)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error grouping cameras for session %q", session)
	}
	ds.logger.Debugw("loaded cameras", "session", session, "cameras", group.Len())
	return group, params, nil
}

func (ds *Dataset) buildCamera(session string, idx int, rec ndarray.Record) (*calibration.Camera, error) {
	for _, field := range cameraFields {
		if _, ok := rec[field]; !ok {
			return nil, &MalformedCameraError{Session: session, Index: idx, Field: field}
		}
	}
	var parsed cameraRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &parsed})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]any(rec)); err != nil {
		return nil, &MalformedCameraError{Session: session, Index: idx, Reason: err.Error()}
	}
	malformed := func(field, reason string) error {
		return &MalformedCameraError{Session: session, Index: idx, Field: field, Reason: reason}
	}

	if len(parsed.Size) != 2 {
		return nil, malformed("size", "expected [width, height]")
	}
	matrix, err := flattenFloats(parsed.Matrix)
	if err != nil || len(matrix) != 9 {
		return nil, malformed("matrix", "expected 3x3 numbers")
	}
	rotation, err := flattenFloats(parsed.Rotation)
	if err != nil || len(rotation) != 3 {
		return nil, malformed("rotation", "expected 3 numbers")
	}
	translation, err := flattenFloats(parsed.Translation)
	if err != nil || len(translation) != 3 {
		return nil, malformed("translation", "expected 3 numbers")
	}
	distortions, err := flattenFloats(parsed.Distortions)
	if err != nil {
		return nil, malformed("distortions", err.Error())
	}

	cam, err := ds.cameras.BuildCamera(
		parsed.Name,
		[2]int{parsed.Size[0], parsed.Size[1]},
		mat.NewDense(3, 3, matrix),
		r3.Vector{X: rotation[0], Y: rotation[1], Z: rotation[2]},
		r3.Vector{X: translation[0], Y: translation[1], Z: translation[2]},
		distortions,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error building camera %d of session %q", idx, session)
	}
	return cam, nil
}

func asRecord(v any) (ndarray.Record, error) {
	switch rec := v.(type) {
	case ndarray.Record:
		return rec, nil
	case map[string]any:
		return ndarray.Record(rec), nil
	}
	return nil, errors.Errorf("expected an object but got %T", v)
}

// flattenFloats collects the numbers of an arbitrarily nested list in row-major order, so that
// both [k1, k2, ...] and [[k1, k2, ...]] or a (3, 1) rotation vector are accepted.
func flattenFloats(v any) ([]float64, error) {
	switch val := v.(type) {
	case float64:
		return []float64{val}, nil
	case int:
		return []float64{float64(val)}, nil
	case []float64:
		return append([]float64{}, val...), nil
	case []any:
		out := []float64{}
		for _, item := range val {
			nested, err := flattenFloats(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		return out, nil
	}
	return nil, errors.Errorf("expected numbers but got %T", v)
}
