// Package ndarray reads the numeric containers the dataset ships: plain .npy arrays, .npz
// archives and pickled object arrays (the allow_pickle flavor of .npy), plus JSON documents.
package ndarray

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ObjectDType is the dtype of arrays whose elements are arbitrary values.
const ObjectDType = "|O"

// Array is a row-major n-dimensional array. Numeric arrays keep their values in Data
// converted to float64; object arrays keep their elements in Objects.
type Array struct {
	Shape   []int
	DType   string
	Data    []float64
	Objects []any
}

// Record is one element of a dict-valued object array, keyed by field name. Values are
// *Array, Record, []any, float64, string or bool.
type Record map[string]any

// NewArray returns a numeric float64 array after checking that shape and data agree.
func NewArray(shape []int, data []float64) (*Array, error) {
	if n := numElements(shape); n != len(data) {
		return nil, errors.Errorf("shape %v wants %d elements but got %d", shape, n, len(data))
	}
	return &Array{Shape: append([]int(nil), shape...), DType: "<f8", Data: data}, nil
}

// IsObject reports whether the array holds arbitrary values rather than numbers.
func (a *Array) IsObject() bool {
	return a.Objects != nil || strings.Contains(a.DType, "O")
}

// Len is the total number of elements.
func (a *Array) Len() int {
	return numElements(a.Shape)
}

// NDim is the number of dimensions; zero for a scalar.
func (a *Array) NDim() int {
	return len(a.Shape)
}

// At returns the numeric element at the given index.
func (a *Array) At(idx ...int) (float64, error) {
	if a.IsObject() {
		return 0, errors.Errorf("cannot index numerically into %s array", a.DType)
	}
	if len(idx) != len(a.Shape) {
		return 0, errors.Errorf("got %d indices for a %d-d array", len(idx), len(a.Shape))
	}
	flat := 0
	for i, v := range idx {
		if v < 0 || v >= a.Shape[i] {
			return 0, errors.Errorf("index %d out of range for axis %d with size %d", v, i, a.Shape[i])
		}
		flat = flat*a.Shape[i] + v
	}
	return a.Data[flat], nil
}

// Scalar returns the only value of a single-element numeric array.
func (a *Array) Scalar() (float64, error) {
	if a.IsObject() || len(a.Data) != 1 {
		return 0, errors.Errorf("expected a single numeric value, got %s array of shape %v", a.DType, a.Shape)
	}
	return a.Data[0], nil
}

// Dense views a 2-d numeric array as a gonum matrix. The matrix shares storage with the array.
func (a *Array) Dense() (*mat.Dense, error) {
	if a.IsObject() {
		return nil, errors.Errorf("cannot convert %s array to a matrix", a.DType)
	}
	if len(a.Shape) != 2 {
		return nil, errors.Errorf("expected a 2-d array, got shape %v", a.Shape)
	}
	if a.Shape[0] == 0 || a.Shape[1] == 0 {
		return nil, errors.Errorf("cannot build a matrix from empty shape %v", a.Shape)
	}
	return mat.NewDense(a.Shape[0], a.Shape[1], a.Data), nil
}

func (a *Array) String() string {
	return fmt.Sprintf("ndarray(%s, shape=%v)", a.DType, a.Shape)
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// FirstRecord returns the dict stored in the first element of a loaded container. The
// dataset stores every per-session container as a one-element object array holding a dict;
// .npz archives load directly as a Record.
func FirstRecord(v any) (Record, error) {
	switch val := v.(type) {
	case Record:
		return val, nil
	case *Array:
		if !val.IsObject() || len(val.Objects) == 0 {
			return nil, errors.Errorf("expected a non-empty object array, got %v", val)
		}
		rec, ok := val.Objects[0].(Record)
		if !ok {
			return nil, errors.Errorf("expected first element to be a dict but got %T", val.Objects[0])
		}
		return rec, nil
	case []any:
		if len(val) == 0 {
			return nil, errors.New("expected a non-empty list")
		}
		return FirstRecord(val[0])
	}
	return nil, errors.Errorf("expected a container of dicts but got %T", v)
}

// AsArray coerces a container value into an array. Scalars become 0-d arrays and flat lists
// of numbers become 1-d arrays; anything else is an error.
func AsArray(v any) (*Array, error) {
	switch val := v.(type) {
	case *Array:
		return val, nil
	case float64:
		return &Array{Shape: []int{}, DType: "<f8", Data: []float64{val}}, nil
	case int:
		return &Array{Shape: []int{}, DType: "<i8", Data: []float64{float64(val)}}, nil
	case bool:
		f := 0.0
		if val {
			f = 1
		}
		return &Array{Shape: []int{}, DType: "|b1", Data: []float64{f}}, nil
	case []float64:
		return &Array{Shape: []int{len(val)}, DType: "<f8", Data: val}, nil
	case []any:
		data := make([]float64, 0, len(val))
		for i, e := range val {
			f, ok := toFloat(e)
			if !ok {
				return nil, errors.Errorf("element %d of list is %T, not a number", i, e)
			}
			data = append(data, f)
		}
		return &Array{Shape: []int{len(val)}, DType: "<f8", Data: data}, nil
	}
	return nil, errors.Errorf("cannot convert %T to an array", v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
