package data

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/pkg/errors"
)

var errInvalidIDXData = errors.New("invalid IDX data")

// IDX element types.
const (
	idxU8  = 0x08
	idxI8  = 0x09
	idxI16 = 0x0b
	idxI32 = 0x0c
	idxF32 = 0x0d
	idxF64 = 0x0e
)

var idxElemSize = map[uint8]int{
	idxU8:  1,
	idxI8:  1,
	idxI16: 2,
	idxI32: 4,
	idxF32: 4,
	idxF64: 8,
}

type IDXHeader struct {
	dtype uint8
	dims  []int
}

func ReadIDXHeader(r io.Reader) (*IDXHeader, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic[0] != 0 || magic[1] != 0 {
		return nil, errors.Wrapf(errInvalidIDXData, "bad magic %x", magic)
	}
	if _, ok := idxElemSize[magic[2]]; !ok {
		return nil, errors.Wrapf(errInvalidIDXData, "unsupported type 0x%02x", magic[2])
	}
	dims := make([]uint32, int(magic[3]))
	if err := binary.Read(r, binary.BigEndian, dims); err != nil {
		return nil, err
	}
	h := &IDXHeader{dtype: magic[2]}
	for _, d := range dims {
		h.dims = append(h.dims, int(d))
	}
	return h, nil
}

// ReadIDX reads an IDX file, gzip compressed if its name ends with .gz.
func ReadIDX(filename string) (*tensor.Dense, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = bufio.NewReader(f)
	if filepath.Ext(filename) == ".gz" {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, filename)
		}
		defer zr.Close()
		r = zr
	}
	t, err := readIDX(r)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return t, nil
}

func readIDX(r io.Reader) (*tensor.Dense, error) {
	hdr, err := ReadIDXHeader(r)
	if err != nil {
		return nil, err
	}
	shape := tensor.NewShape(hdr.dims...)
	size := idxElemSize[hdr.dtype]
	bs := make([]byte, shape.Size()*size)
	if _, err := io.ReadFull(r, bs); err != nil {
		return nil, errors.Wrapf(errInvalidIDXData, "%s of %s: %v", shape, hdr, err)
	}
	t := tensor.New(shape)
	xs := t.Data()
	for i := range xs {
		b := bs[i*size : (i+1)*size]
		switch hdr.dtype {
		case idxU8:
			xs[i] = float64(b[0])
		case idxI8:
			xs[i] = float64(int8(b[0]))
		case idxI16:
			xs[i] = float64(int16(binary.BigEndian.Uint16(b)))
		case idxI32:
			xs[i] = float64(int32(binary.BigEndian.Uint32(b)))
		case idxF32:
			xs[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case idxF64:
			xs[i] = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
	}
	return t, nil
}

func (h *IDXHeader) String() string {
	return tensor.NewShape(h.dims...).String()
}

// LoadIDXDataset loads <dir>/<name>-images-idx3-ubyte and the matching
// labels file, falling back to their .gz versions. Pixels are scaled to [0, 1].
func LoadIDXDataset(dir, name string) (*InMemory, error) {
	samples, err := ReadIDX(findIDX(dir, name+`-images-idx3-ubyte`))
	if err != nil {
		return nil, err
	}
	for i, x := range samples.Data() {
		samples.Data()[i] = x / 255
	}
	labelTensor, err := ReadIDX(findIDX(dir, name+`-labels-idx1-ubyte`))
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(labelTensor.Data()))
	for i, x := range labelTensor.Data() {
		labels[i] = int(x)
	}
	ds, err := NewInMemory(samples, labels)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s in %s", name, dir)
	}
	log.Debugf("loaded %d samples of shape %s from %s", ds.Len(), ds.SampleShape(), name)
	return ds, nil
}

func findIDX(dir, name string) string {
	filename := filepath.Join(dir, name)
	if _, err := os.Stat(filename); err != nil {
		if _, err := os.Stat(filename + ".gz"); err == nil {
			return filename + ".gz"
		}
	}
	return filename
}

// LoadIDXSplits loads the train and t10k splits of an MNIST-style directory.
func LoadIDXSplits(dir string) (train, valid *InMemory, err error) {
	if train, err = LoadIDXDataset(dir, `train`); err != nil {
		return nil, nil, err
	}
	if valid, err = LoadIDXDataset(dir, `t10k`); err != nil {
		return nil, nil, err
	}
	return train, valid, nil
}
