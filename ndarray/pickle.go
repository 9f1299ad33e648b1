package ndarray

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// decodePickle unpickles a stream written by numpy (np.save with allow_pickle, or a plain
// pickle.dump of numpy values) and converts the result into Arrays, Records and Go scalars.
func decodePickle(r io.Reader) (any, error) {
	u := pickle.NewUnpickler(r)
	u.FindClass = findNumpyClass
	v, err := u.Load()
	if err != nil {
		return nil, errors.Wrap(err, "could not unpickle")
	}
	return convertPickled(v)
}

func findNumpyClass(module, name string) (interface{}, error) {
	switch module {
	case "numpy.core.multiarray", "numpy._core.multiarray":
		switch name {
		case "_reconstruct":
			return reconstructFunc{}, nil
		case "scalar":
			return scalarFunc{}, nil
		}
	case "numpy":
		switch name {
		case "ndarray":
			return ndarrayClass{}, nil
		case "dtype":
			return dtypeFunc{}, nil
		}
	case "_codecs":
		if name == "encode" {
			return encodeFunc{}, nil
		}
	}
	return nil, errors.Errorf("unsupported pickled class %s.%s", module, name)
}

// ndarrayClass stands in for numpy.ndarray, which only appears as an argument to _reconstruct.
type ndarrayClass struct{}

// reconstructFunc is numpy.core.multiarray._reconstruct; the array gets filled in by BUILD.
type reconstructFunc struct{}

func (reconstructFunc) Call(args ...interface{}) (interface{}, error) {
	return &pickledArray{}, nil
}

// dtypeFunc is numpy.dtype(kind, align, copy).
type dtypeFunc struct{}

func (dtypeFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("dtype called without a kind")
	}
	kind, ok := args[0].(string)
	if !ok {
		return nil, errors.Errorf("dtype kind is %T, not a string", args[0])
	}
	return &pickledDType{kind: kind, order: "|"}, nil
}

type pickledDType struct {
	kind  string
	order string
}

// PySetState receives (version, byteorder, subarray, names, fields, elsize, alignment, flags).
func (d *pickledDType) PySetState(state interface{}) error {
	items, ok := sequenceItems(state)
	if !ok {
		return errors.Errorf("dtype state is %T, not a tuple", state)
	}
	if len(items) > 1 {
		if order, ok := items[1].(string); ok {
			d.order = order
		}
	}
	return nil
}

func (d *pickledDType) descr() string {
	return d.order + d.kind
}

func (d *pickledDType) isObject() bool {
	return strings.HasPrefix(d.kind, "O")
}

type pickledArray struct {
	shape   []int
	dtype   *pickledDType
	fortran bool
	raw     []byte
	objects []any
}

// PySetState receives (version, shape, dtype, is_fortran, data). Data is raw bytes for numeric
// arrays and a list of values for object arrays.
func (a *pickledArray) PySetState(state interface{}) error {
	items, ok := sequenceItems(state)
	if !ok || len(items) < 5 {
		return errors.Errorf("unexpected ndarray state %T", state)
	}
	shapeItems, ok := sequenceItems(items[1])
	if !ok {
		return errors.Errorf("ndarray shape is %T, not a tuple", items[1])
	}
	a.shape = make([]int, len(shapeItems))
	for i, s := range shapeItems {
		n, err := toInt(s)
		if err != nil {
			return errors.Wrap(err, "ndarray shape")
		}
		a.shape[i] = n
	}
	if a.dtype, ok = items[2].(*pickledDType); !ok {
		return errors.Errorf("ndarray dtype is %T", items[2])
	}
	a.fortran, _ = items[3].(bool)
	switch data := items[4].(type) {
	case []byte:
		a.raw = data
	case string:
		a.raw = latin1(data)
	default:
		objs, ok := sequenceItems(data)
		if !ok {
			return errors.Errorf("ndarray data is %T", data)
		}
		a.objects = objs
	}
	return nil
}

func (a *pickledArray) toArray() (*Array, error) {
	if a.dtype == nil {
		return nil, errors.New("ndarray was never given a state")
	}
	if a.dtype.isObject() {
		objs := make([]any, len(a.objects))
		for i, o := range a.objects {
			v, err := convertPickled(o)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			objs[i] = v
		}
		if numElements(a.shape) != len(objs) {
			return nil, errors.Errorf("shape %v wants %d objects but got %d", a.shape, numElements(a.shape), len(objs))
		}
		if a.fortran {
			objs = fortranToC(objs, a.shape)
		}
		return &Array{Shape: a.shape, DType: ObjectDType, Objects: objs}, nil
	}
	data, err := decodeRaw(a.raw, a.dtype.descr())
	if err != nil {
		return nil, err
	}
	return newNumeric(a.dtype.descr(), a.shape, a.fortran, data)
}

// scalarFunc is numpy.core.multiarray.scalar(dtype, raw), used for numpy scalars.
type scalarFunc struct{}

func (scalarFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, errors.New("scalar needs a dtype and a payload")
	}
	dt, ok := args[0].(*pickledDType)
	if !ok {
		return nil, errors.Errorf("scalar dtype is %T", args[0])
	}
	var raw []byte
	switch p := args[1].(type) {
	case []byte:
		raw = p
	case string:
		raw = latin1(p)
	default:
		return nil, errors.Errorf("scalar payload is %T", args[1])
	}
	vals, err := decodeRaw(raw, dt.descr())
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, errors.Errorf("scalar payload holds %d values", len(vals))
	}
	return vals[0], nil
}

// encodeFunc is _codecs.encode, which protocol 2 pickles use to carry bytes as latin-1 text.
type encodeFunc struct{}

func (encodeFunc) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, errors.New("encode called without a value")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, errors.Errorf("encode value is %T", args[0])
	}
	return latin1(s), nil
}

func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}

type indexable interface {
	Len() int
	Get(i int) interface{}
}

type keyed interface {
	Keys() []interface{}
	Get(key interface{}) (interface{}, bool)
}

func sequenceItems(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case indexable:
		items := make([]interface{}, s.Len())
		for i := range items {
			items[i] = s.Get(i)
		}
		return items, true
	}
	return nil, false
}

func convertPickled(v interface{}) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, float64, []byte:
		return val, nil
	case int:
		return val, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(val).Float64()
		return f, nil
	case *pickledArray:
		return val.toArray()
	case keyed:
		rec := Record{}
		for _, k := range val.Keys() {
			item, _ := val.Get(k)
			conv, err := convertPickled(item)
			if err != nil {
				return nil, errors.Wrapf(err, "key %v", k)
			}
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			rec[key] = conv
		}
		return rec, nil
	}
	if items, ok := sequenceItems(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			conv, err := convertPickled(item)
			if err != nil {
				return nil, errors.Wrapf(err, "item %d", i)
			}
			out[i] = conv
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported pickled value %T", v)
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case *big.Int:
		return int(n.Int64()), nil
	}
	return 0, errors.Errorf("expected an integer but got %T", v)
}

// decodeRaw interprets a numpy buffer according to a dtype descriptor such as "<f8" or "|u1".
func decodeRaw(raw []byte, descr string) ([]float64, error) {
	if descr == "" {
		return nil, errors.New("empty dtype")
	}
	var order binary.ByteOrder = binary.LittleEndian
	kind := descr
	switch descr[0] {
	case '>':
		order = binary.BigEndian
		kind = descr[1:]
	case '<', '|', '=':
		kind = descr[1:]
	}
	if len(kind) < 2 {
		return nil, errors.Errorf("unsupported dtype %q", descr)
	}
	size, err := strconv.Atoi(kind[1:])
	if err != nil || size <= 0 {
		return nil, errors.Errorf("unsupported dtype %q", descr)
	}
	if len(raw)%size != 0 {
		return nil, errors.Errorf("%d bytes is not a multiple of the %q item size", len(raw), descr)
	}
	out := make([]float64, len(raw)/size)
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch kind {
		case "f2":
			out[i] = float64(float16.Frombits(order.Uint16(b)).Float32())
		case "f4":
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "f8":
			out[i] = math.Float64frombits(order.Uint64(b))
		case "i1":
			out[i] = float64(int8(b[0]))
		case "i2":
			out[i] = float64(int16(order.Uint16(b)))
		case "i4":
			out[i] = float64(int32(order.Uint32(b)))
		case "i8":
			out[i] = float64(int64(order.Uint64(b)))
		case "u1", "b1":
			out[i] = float64(b[0])
		case "u2":
			out[i] = float64(order.Uint16(b))
		case "u4":
			out[i] = float64(order.Uint32(b))
		case "u8":
			out[i] = float64(order.Uint64(b))
		default:
			return nil, errors.Errorf("unsupported dtype %q", descr)
		}
	}
	return out, nil
}
