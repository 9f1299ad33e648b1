package ndarray

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Loader is the deserialization collaborator the dataset loaders read through. Each call is an
// atomic, all-or-nothing read of one file.
type Loader interface {
	// LoadArray reads an array container. allowHeterogeneous permits object arrays, whose
	// elements are pickled Python values.
	LoadArray(path string, allowHeterogeneous bool) (any, error)
	// LoadJSON reads a JSON document into maps, slices, float64s, strings and bools.
	LoadJSON(path string) (any, error)
}

// FileLoader reads containers from the local filesystem. The encoding is sniffed from the
// file's leading bytes, so a .npy path may hold a plain array, an .npz archive or a raw pickle.
type FileLoader struct{}

var (
	npyMagic    = []byte("\x93NUMPY")
	zipMagic    = []byte("PK\x03\x04")
	pickleMagic = byte(0x80)
)

// LoadArray implements Loader.
func (FileLoader) LoadArray(path string, allowHeterogeneous bool) (any, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening array file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	br := bufio.NewReader(f)
	head, err := br.Peek(len(npyMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "error reading %q", path)
	}
	switch {
	case bytes.HasPrefix(head, npyMagic):
		arr, err := readNpy(br, allowHeterogeneous)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading npy file %q", path)
		}
		return arr, nil
	case bytes.HasPrefix(head, zipMagic):
		rec, err := readNpz(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading npz archive %q", path)
		}
		return rec, nil
	case len(head) > 0 && head[0] == pickleMagic:
		if !allowHeterogeneous {
			return nil, errors.Errorf("%q is a pickle and heterogeneous values are not allowed", path)
		}
		v, err := decodePickle(br)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading pickle %q", path)
		}
		return v, nil
	}
	return nil, errors.Errorf("%q is not a npy, npz or pickle file", path)
}

// LoadJSON implements Loader.
func (FileLoader) LoadJSON(path string) (any, error) {
	//nolint:gosec
	byteValue, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	var out any
	if err := json.Unmarshal(byteValue, &out); err != nil {
		return nil, errors.Wrapf(err, "error parsing JSON file %q", path)
	}
	return out, nil
}
