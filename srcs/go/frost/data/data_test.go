package data

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/frostml/frost/srcs/go/frost/tensor"
)

func writeIDX(t *testing.T, filename string, dims []uint32, data []byte) {
	b := &bytes.Buffer{}
	rank := byte(len(dims))
	b.Write([]byte{0, 0, idxU8, rank})
	binary.Write(b, binary.BigEndian, dims)
	b.Write(data)
	bs := b.Bytes()
	if filepath.Ext(filename) == ".gz" {
		z := &bytes.Buffer{}
		w := gzip.NewWriter(z)
		w.Write(bs)
		w.Close()
		bs = z.Bytes()
	}
	if err := os.WriteFile(filename, bs, 0644); err != nil {
		t.Fatal(err)
	}
}

func Test_LoadIDXSplits(t *testing.T) {
	dir := t.TempDir()
	// 300 exercises the high bytes of the big endian dims
	const n = 300
	images := make([]byte, n*2*2)
	labels := make([]byte, n)
	for i := range labels {
		labels[i] = byte(i % 10)
		images[4*i] = 255
	}
	writeIDX(t, filepath.Join(dir, "train-images-idx3-ubyte"), []uint32{n, 2, 2}, images)
	writeIDX(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []uint32{n}, labels)
	writeIDX(t, filepath.Join(dir, "t10k-images-idx3-ubyte.gz"), []uint32{1, 2, 2}, []byte{0, 0, 0, 51})
	writeIDX(t, filepath.Join(dir, "t10k-labels-idx1-ubyte.gz"), []uint32{1}, []byte{7})
	train, valid, err := LoadIDXSplits(dir)
	if err != nil {
		t.Fatal(err)
	}
	if train.Len() != n || !train.SampleShape().Equal(tensor.NewShape(2, 2)) {
		t.Fatalf("train: %d samples of %s", train.Len(), train.SampleShape())
	}
	s, err := train.Get(13)
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != 3 || s.Input[0] != 1 || s.Input[1] != 0 {
		t.Errorf("unexpected sample %+v", s)
	}
	v, _ := valid.Get(0)
	if v.Label != 7 || v.Input[3] != 0.2 {
		t.Errorf("unexpected valid sample %+v", v)
	}
	if _, err := train.Get(n); err == nil {
		t.Error("out of range index should fail")
	}
}

func Test_ReadIDX_invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad")
	os.WriteFile(bad, []byte{1, 2, 8, 1, 0, 0, 0, 1, 0}, 0644)
	if _, err := ReadIDX(bad); err == nil {
		t.Error("bad magic should fail")
	}
	short := filepath.Join(dir, "short")
	writeIDX(t, short, []uint32{4}, []byte{1, 2})
	if _, err := ReadIDX(short); err == nil {
		t.Error("truncated data should fail")
	}
	if _, err := ReadIDX(filepath.Join(dir, "missing")); err == nil {
		t.Error("missing file should fail")
	}
}

func Test_Distributed(t *testing.T) {
	const n, size = 10, 4
	seen := map[int]int{}
	for r := 0; r < size; r++ {
		s := NewDistributed(n, r, size, true, 1)
		s.SetEpoch(3)
		idx := s.Indices()
		if len(idx) != 3 || s.Len() != 3 {
			t.Fatalf("rank %d: %d indices, Len() = %d", r, len(idx), s.Len())
		}
		again := NewDistributed(n, r, size, true, 1)
		again.SetEpoch(3)
		for i, k := range again.Indices() {
			if idx[i] != k {
				t.Fatalf("rank %d: order is not a function of (seed, epoch)", r)
			}
		}
		for _, k := range idx {
			seen[k]++
		}
	}
	if len(seen) != n {
		t.Errorf("shards cover %d of %d samples", len(seen), n)
	}
	var padded int
	for _, c := range seen {
		padded += c - 1
	}
	if padded != 2 {
		t.Errorf("%d padded samples, want 2", padded)
	}
	s := NewDistributed(n, 1, size, false, 0)
	if idx := s.Indices(); idx[0] != 1 || idx[1] != 5 || idx[2] != 9 {
		t.Errorf("unshuffled shard = %v", idx)
	}
}

func Test_Random(t *testing.T) {
	s := NewRandom(50, 42)
	e0 := s.Indices()
	s.SetEpoch(1)
	e1 := s.Indices()
	same := true
	for i := range e0 {
		if e0[i] != e1[i] {
			same = false
		}
	}
	if same {
		t.Error("epochs should be shuffled differently")
	}
	sorted := append([]int{}, e1...)
	sort.Ints(sorted)
	for i, k := range sorted {
		if i != k {
			t.Fatal("not a permutation")
		}
	}
}

func indexDataset(t *testing.T, n int) *InMemory {
	xs := make([]float64, n*2)
	labels := make([]int, n)
	for i := range labels {
		xs[2*i] = float64(i)
		labels[i] = i
	}
	ds, err := NewInMemory(tensor.FromData(tensor.NewShape(n, 2), xs), labels)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func collect(t *testing.T, l *Loader) []*Batch {
	it := l.Iter(context.TODO())
	defer it.Close()
	var bs []*Batch
	for {
		b, err := it.Next()
		if err == io.EOF {
			return bs
		}
		if err != nil {
			t.Fatal(err)
		}
		bs = append(bs, b)
	}
}

func Test_Loader(t *testing.T) {
	ds := indexDataset(t, 103)
	for _, workers := range []int{0, 1, 4} {
		l, err := NewLoader(ds, NewSequential(ds.Len()), LoaderOptions{BatchSize: 10, Workers: workers, DropLast: true})
		if err != nil {
			t.Fatal(err)
		}
		bs := collect(t, l)
		if len(bs) != 10 || l.Len() != 10 {
			t.Fatalf("workers=%d: %d batches, Len() = %d", workers, len(bs), l.Len())
		}
		for i, b := range bs {
			if b.Inputs.Ldm() != 10 || b.Targets[0] != 10*i || b.Inputs.Row(0)[0] != float64(10*i) {
				t.Fatalf("workers=%d: batch %d out of order: %v", workers, i, b.Targets)
			}
		}
	}
	l, _ := NewLoader(ds, NewSequential(ds.Len()), LoaderOptions{BatchSize: 10})
	if bs := collect(t, l); len(bs) != 11 || l.Len() != 11 || len(bs[10].Targets) != 3 {
		t.Errorf("without drop last: %d batches", len(bs))
	}
	if _, err := NewLoader(ds, NewSequential(1), LoaderOptions{}); err == nil {
		t.Error("zero batch size should fail")
	}
}

func Test_Loader_empty(t *testing.T) {
	ds := indexDataset(t, 5)
	l, _ := NewLoader(ds, NewSequential(ds.Len()), LoaderOptions{BatchSize: 8, Workers: 2, DropLast: true})
	if l.Len() != 0 {
		t.Errorf("Len() = %d", l.Len())
	}
	if bs := collect(t, l); len(bs) != 0 {
		t.Errorf("%d batches", len(bs))
	}
}

func Test_Loader_reproducible_transforms(t *testing.T) {
	ds := indexDataset(t, 64)
	tf, err := TrainTransform([]float64{0}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	run := func(workers int) []*Batch {
		l, _ := NewLoader(ds, NewRandom(ds.Len(), 5), LoaderOptions{BatchSize: 8, Workers: workers, Transform: tf, Seed: 5})
		l.SetEpoch(2)
		return collect(t, l)
	}
	a, b := run(0), run(3)
	var flipped int
	for i := range a {
		for j, x := range a[i].Inputs.Data() {
			if b[i].Inputs.Data()[j] != x {
				t.Fatalf("batch %d differs between worker counts", i)
			}
		}
		for j, label := range a[i].Targets {
			if a[i].Inputs.Row(j)[1] == float64(label) {
				flipped++
			}
		}
	}
	if flipped == 0 || flipped == 64 {
		t.Errorf("%d of 64 samples flipped", flipped)
	}
}

func Test_Loader_cancel(t *testing.T) {
	ds := indexDataset(t, 100)
	l, _ := NewLoader(ds, NewSequential(ds.Len()), LoaderOptions{BatchSize: 1, Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	it := l.Iter(ctx)
	defer it.Close()
	if _, err := it.Next(); err != nil {
		t.Fatal(err)
	}
	cancel()
	var err error
	for err == nil {
		_, err = it.Next()
	}
	if err != context.Canceled {
		t.Errorf("Next() after cancel = %v", err)
	}
}

func Test_Normalize(t *testing.T) {
	n, err := NewNormalize([]float64{1, 2}, []float64{2, 4})
	if err != nil {
		t.Fatal(err)
	}
	s := Sample{Input: []float64{3, 3, 6, 6}}
	n.Apply(&s, tensor.NewShape(2, 1, 2), nil)
	if s.Input[0] != 1 || s.Input[2] != 1 {
		t.Errorf("normalized %v", s.Input)
	}
	if _, err := NewNormalize([]float64{0}, []float64{0}); err == nil {
		t.Error("zero std should fail")
	}
}

func Test_RandomHorizontalFlip(t *testing.T) {
	s := Sample{Input: []float64{1, 2, 3, 4, 5, 6}}
	RandomHorizontalFlip{P: 1}.Apply(&s, tensor.NewShape(2, 3), rand.New(rand.NewSource(0)))
	want := []float64{3, 2, 1, 6, 5, 4}
	for i := range want {
		if s.Input[i] != want[i] {
			t.Fatalf("flipped %v, want %v", s.Input, want)
		}
	}
}
