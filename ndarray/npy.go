package ndarray

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"
	"go.uber.org/multierr"
)

func readNpy(r io.Reader, allowHeterogeneous bool) (*Array, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, err
	}
	descr := nr.Header.Descr
	if strings.Contains(descr.Type, "O") {
		if !allowHeterogeneous {
			return nil, errors.New("object arrays need allowHeterogeneous")
		}
		// The payload of an object array is a pickle of the whole array.
		v, err := decodePickle(r)
		if err != nil {
			return nil, err
		}
		arr, ok := v.(*Array)
		if !ok {
			return nil, errors.Errorf("object array pickle decoded to %T", v)
		}
		return arr, nil
	}
	data, err := readNumeric(descr.Type, nr.Read)
	if err != nil {
		return nil, err
	}
	return newNumeric(descr.Type, descr.Shape, descr.Fortran, data)
}

func readNpz(path string) (rec Record, err error) {
	zr, err := npz.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, zr.Close())
	}()

	rec = Record{}
	for _, key := range zr.Keys() {
		hdr := zr.Header(key)
		if hdr == nil {
			return nil, errors.Errorf("no header for member %q", key)
		}
		name := strings.TrimSuffix(key, ".npy")
		if strings.Contains(hdr.Descr.Type, "O") {
			// npz members are always plain npy payloads, never a dict.
			return nil, errors.Errorf("member %q is an object array, which npz archives cannot hold here", name)
		}
		member := key
		data, err := readNumeric(hdr.Descr.Type, func(ptr any) error { return zr.Read(member, ptr) })
		if err != nil {
			return nil, errors.Wrapf(err, "member %q", name)
		}
		arr, err := newNumeric(hdr.Descr.Type, hdr.Descr.Shape, hdr.Descr.Fortran, data)
		if err != nil {
			return nil, errors.Wrapf(err, "member %q", name)
		}
		rec[name] = arr
	}
	return rec, nil
}

func newNumeric(dtype string, shape []int, fortran bool, data []float64) (*Array, error) {
	if n := numElements(shape); n != len(data) {
		return nil, errors.Errorf("shape %v wants %d elements but %d were read", shape, n, len(data))
	}
	if fortran {
		data = fortranToC(data, shape)
	}
	return &Array{Shape: append([]int{}, shape...), DType: dtype, Data: data}, nil
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func readAs[T number](read func(any) error) ([]float64, error) {
	var vals []T
	if err := read(&vals); err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out, nil
}

func readNumeric(dtype string, read func(any) error) ([]float64, error) {
	switch strings.TrimLeft(dtype, "<>|=") {
	case "f8":
		return readAs[float64](read)
	case "f4":
		return readAs[float32](read)
	case "i8":
		return readAs[int64](read)
	case "i4":
		return readAs[int32](read)
	case "i2":
		return readAs[int16](read)
	case "i1":
		return readAs[int8](read)
	case "u8":
		return readAs[uint64](read)
	case "u4":
		return readAs[uint32](read)
	case "u2":
		return readAs[uint16](read)
	case "u1":
		return readAs[uint8](read)
	case "b1":
		var vals []bool
		if err := read(&vals); err != nil {
			return nil, err
		}
		out := make([]float64, len(vals))
		for i, v := range vals {
			if v {
				out[i] = 1
			}
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported dtype %q", dtype)
}

// fortranToC reorders column-major data into row-major order.
func fortranToC[T any](data []T, shape []int) []T {
	out := make([]T, len(data))
	idx := make([]int, len(shape))
	for c := range out {
		rem := c
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d] = rem % shape[d]
			rem /= shape[d]
		}
		f := 0
		for d := len(shape) - 1; d >= 0; d-- {
			f = f*shape[d] + idx[d]
		}
		out[c] = data[f]
	}
	return out
}
