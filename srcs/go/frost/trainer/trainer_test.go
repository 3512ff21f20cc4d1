package trainer

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/frostml/frost/srcs/go/frost/checkpoint"
	"github.com/frostml/frost/srcs/go/frost/collective"
	"github.com/frostml/frost/srcs/go/frost/data"
	"github.com/frostml/frost/srcs/go/frost/dist"
	"github.com/frostml/frost/srcs/go/frost/engine"
	"github.com/frostml/frost/srcs/go/frost/nn"
	"github.com/frostml/frost/srcs/go/frost/tensor"
)

func testDataset(t *testing.T, n, features int) data.Dataset {
	xs := make([]float64, n*features)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = i % 2
		for j := 0; j < features; j++ {
			xs[i*features+j] = float64((i+j)%3) - float64(labels[i])
		}
	}
	ds, err := data.NewInMemory(tensor.FromData(tensor.NewShape(n, features), xs), labels)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func testConfig(dir string, epochs int) Config {
	seed := int64(7)
	return Config{
		Epochs:     epochs,
		Seed:       &seed,
		SaveDir:    dir,
		NumClasses: 2,
		BatchSize:  2,
		LR:         0.1,
		StepSize:   1,
		Gamma:      0.5,
	}
}

// epochLoader remembers the epoch of the training loader.
type epochLoader struct {
	Loader
	epoch *int
}

func (l epochLoader) SetEpoch(epoch int) {
	*l.epoch = epoch
	l.Loader.SetEpoch(epoch)
}

// scriptedEvaluator reports scores[epoch] as acc1.
type scriptedEvaluator struct {
	epoch  *int
	scores []float64
}

func (e scriptedEvaluator) Forward(logits *tensor.Dense, targets []int) []float64 {
	return []float64{e.scores[*e.epoch]}
}

func (scriptedEvaluator) Names() []string { return []string{"acc1"} }

func newTestTrainer(t *testing.T, cfg Config, dc *dist.Context, scores []float64) *Trainer {
	c, err := newComponents(context.TODO(), cfg, dc, testDataset(t, 16, 4), testDataset(t, 8, 4))
	if err != nil {
		t.Fatal(err)
	}
	if scores != nil {
		epoch := new(int)
		c.Train = epochLoader{Loader: c.Train, epoch: epoch}
		c.Evaluator = scriptedEvaluator{epoch: epoch, scores: scores}
	}
	tr, err := New(cfg, &engine.RunContext{Dist: dc}, c)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestBestScore(t *testing.T) {
	var b bestScore
	for i, tc := range []struct {
		score float64
		want  bool
	}{
		{0, false},
		{0.5, true},
		{0.5, false},
		{0.4, false},
		{0.7, true},
	} {
		if got := b.update(tc.score); got != tc.want {
			t.Errorf("#%d: update(%g) = %t, want %t", i, tc.score, got, tc.want)
		}
	}
}

func TestRunSavesBest(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTrainer(t, testConfig(dir, 4), dist.Single(), []float64{0.5, 0.7, 0.7, 0.6})
	if err := tr.Run(context.TODO()); err != nil {
		t.Fatal(err)
	}
	if n := tr.Checkpoints().Saved(); n != 6 {
		t.Errorf("saved %d checkpoints, want 6", n)
	}
	for name, epoch := range map[string]int{
		checkpoint.CurrentName: 3,
		checkpoint.BestName:    1,
	} {
		r, err := checkpoint.Load(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if !r.Resumable() {
			t.Errorf("%s is not resumable", name)
		}
		if r.Epoch() != epoch {
			t.Errorf("%s has epoch %d, want %d", name, r.Epoch(), epoch)
		}
	}
}

func TestRunZeroAccuracyNeverBest(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTrainer(t, testConfig(dir, 2), dist.Single(), []float64{0, 0})
	if err := tr.Run(context.TODO()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, checkpoint.BestName)); !os.IsNotExist(err) {
		t.Errorf("best checkpoint exists: %v", err)
	}
	if n := tr.Checkpoints().Saved(); n != 2 {
		t.Errorf("saved %d checkpoints, want 2", n)
	}
}

func TestRunNoEpochs(t *testing.T) {
	for _, epochs := range []int{0, -1} {
		tr := newTestTrainer(t, testConfig(t.TempDir(), epochs), dist.Single(), nil)
		if err := tr.Run(context.TODO()); err != nil {
			t.Fatal(err)
		}
		if n := tr.Checkpoints().Saved(); n != 0 {
			t.Errorf("epochs=%d: saved %d checkpoints", epochs, n)
		}
	}
}

func TestRunOnlyMainWrites(t *testing.T) {
	const n = 3
	dir := t.TempDir()
	group := collective.NewGroup(n)
	trainSet, validSet := testDataset(t, 16, 4), testDataset(t, 8, 4)
	trainers := make([]*Trainer, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range group {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dc := dist.FromCollective(group[i], i)
			c, err := newComponents(context.TODO(), testConfig(dir, 2), dc, trainSet, validSet)
			if err != nil {
				errs[i] = err
				return
			}
			tr, err := New(testConfig(dir, 2), &engine.RunContext{Dist: dc}, c)
			if err != nil {
				errs[i] = err
				return
			}
			trainers[i] = tr
			errs[i] = tr.Run(context.TODO())
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", i, err)
		}
	}
	if n := trainers[0].Checkpoints().Saved(); n < 2 {
		t.Errorf("main process saved %d checkpoints, want at least 2", n)
	}
	for i, tr := range trainers[1:] {
		if n := tr.Checkpoints().Saved(); n != 0 {
			t.Errorf("rank %d saved %d checkpoints", i+1, n)
		}
	}
	if _, err := checkpoint.Load(filepath.Join(dir, checkpoint.CurrentName)); err != nil {
		t.Error(err)
	}
	// replicas stay identical
	var states [][]byte
	for _, tr := range trainers {
		b, err := tr.c.Module.StateDict()
		if err != nil {
			t.Fatal(err)
		}
		states = append(states, b)
	}
	for i := 1; i < n; i++ {
		if string(states[i]) != string(states[0]) {
			t.Errorf("model of rank %d differs from rank 0", i)
		}
	}
}

func TestRunSeed(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	if seed, err := runSeed(context.TODO(), cfg, dist.Single()); err != nil || seed != 7 {
		t.Errorf("runSeed = %d, %v, want 7", seed, err)
	}

	const n, samples = 3, 12
	cfg.Seed = nil
	group := collective.NewGroup(n)
	seeds := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range group {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seeds[i], errs[i] = runSeed(context.TODO(), cfg, dist.FromCollective(group[i], i))
		}(i)
	}
	wg.Wait()
	seen := make([]int, samples)
	for i := range group {
		if errs[i] != nil {
			t.Fatalf("rank %d: %v", i, errs[i])
		}
		if seeds[i] != seeds[0] {
			t.Errorf("rank %d seed %d, rank 0 seed %d", i, seeds[i], seeds[0])
		}
		for _, j := range data.NewDistributed(samples, i, n, true, seeds[i]).Indices() {
			seen[j]++
		}
	}
	for j, k := range seen {
		if k != 1 {
			t.Errorf("sample %d drawn %d times across ranks", j, k)
		}
	}
}

func TestResume(t *testing.T) {
	dir := t.TempDir()
	first := newTestTrainer(t, testConfig(dir, 2), dist.Single(), nil)
	if err := first.Run(context.TODO()); err != nil {
		t.Fatal(err)
	}
	saved, err := first.c.Module.StateDict()
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t.TempDir(), 4)
	tr := newTestTrainer(t, cfg, dist.Single(), nil)
	if err := tr.Resume(filepath.Join(dir, checkpoint.CurrentName)); err != nil {
		t.Fatal(err)
	}
	if tr.StartEpoch() != 2 {
		t.Errorf("start epoch = %d, want 2", tr.StartEpoch())
	}
	if lr := tr.c.Scheduler.LR(); math.Abs(lr-0.025) > 1e-12 {
		t.Errorf("lr = %g, want 0.025", lr)
	}
	if opt := tr.c.Optimizer.(*nn.AdamW); opt.Steps() != first.c.Optimizer.(*nn.AdamW).Steps() {
		t.Errorf("optimizer steps = %d, want %d", opt.Steps(), first.c.Optimizer.(*nn.AdamW).Steps())
	}
	got, err := tr.c.Module.StateDict()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(saved) {
		t.Error("model state was not restored")
	}
	if err := tr.Run(context.TODO()); err != nil {
		t.Fatal(err)
	}
	if n := tr.Checkpoints().Saved(); n < 2 {
		t.Errorf("saved %d checkpoints after resume, want at least 2", n)
	}
	r, err := checkpoint.Load(filepath.Join(cfg.SaveDir, checkpoint.CurrentName))
	if err != nil {
		t.Fatal(err)
	}
	if r.Epoch() != 3 {
		t.Errorf("last epoch = %d, want 3", r.Epoch())
	}
}

func TestResumeModelOnly(t *testing.T) {
	src := newTestTrainer(t, testConfig("", 1), dist.Single(), nil)
	model, err := src.c.Module.StateDict()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "model.pth")
	for _, r := range []*checkpoint.Record{
		(&checkpoint.Record{}).WithModel(model),
		(&checkpoint.Record{}).WithModel(model).WithEpoch(5),
	} {
		if err := os.WriteFile(path, r.Marshal(), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := testConfig("", 3)
		cfg.StartEpoch = 1
		tr := newTestTrainer(t, cfg, dist.Single(), nil)
		if err := tr.Resume(path); err != nil {
			t.Fatal(err)
		}
		if tr.StartEpoch() != 1 {
			t.Errorf("%s: start epoch = %d, want 1", r.Present(), tr.StartEpoch())
		}
		if lr := tr.c.Scheduler.LR(); math.Abs(lr-0.05) > 1e-12 {
			t.Errorf("%s: lr = %g, want 0.05", r.Present(), lr)
		}
	}
}

func TestResumeWithoutModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epoch.pth")
	if err := os.WriteFile(path, (&checkpoint.Record{}).WithEpoch(3).Marshal(), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := newTestTrainer(t, testConfig("", 3), dist.Single(), nil)
	if err := tr.Resume(path); !errors.Is(err, checkpoint.ErrNoModel) {
		t.Errorf("Resume = %v, want %v", err, checkpoint.ErrNoModel)
	}
	if err := tr.Resume(filepath.Join(t.TempDir(), "missing.pth")); err == nil {
		t.Error("Resume of a missing file succeeded")
	}
}

func writeIDX(t *testing.T, path string, dims []int, body []byte) {
	header := []byte{0, 0, 0x08, byte(len(dims))}
	for _, d := range dims {
		header = binary.BigEndian.AppendUint32(header, uint32(d))
	}
	if err := os.WriteFile(path, append(header, body...), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeIDXSplits(t *testing.T, dir string, n int) {
	for _, split := range []string{"train", "t10k"} {
		pixels := make([]byte, n*4*4)
		labels := make([]byte, n)
		for i := range labels {
			labels[i] = byte(i % 10)
			pixels[i*16+i%16] = 255
		}
		writeIDX(t, filepath.Join(dir, split+"-images-idx3-ubyte"), []int{n, 4, 4}, pixels)
		writeIDX(t, filepath.Join(dir, split+"-labels-idx1-ubyte"), []int{n}, labels)
	}
}

func TestBuild(t *testing.T) {
	dataDir := t.TempDir()
	writeIDXSplits(t, dataDir, 20)
	cfg := testConfig(t.TempDir(), 2)
	cfg.Data = dataDir
	cfg.Device = "cpu"
	cfg.NumClasses = 10
	cfg.BatchSize = 4
	cfg.Workers = 2
	cfg.TensorboardDir = t.TempDir()
	tr, err := Build(context.TODO(), cfg, dist.Single())
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(context.TODO()); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if tr.Checkpoints().Saved() < 2 {
		t.Errorf("saved %d checkpoints", tr.Checkpoints().Saved())
	}
	events, err := filepath.Glob(filepath.Join(cfg.TensorboardDir, "events.out.tfevents.*"))
	if err != nil || len(events) != 1 {
		t.Fatalf("event files: %v, %v", events, err)
	}

	cfg.Resume = filepath.Join(cfg.SaveDir, checkpoint.CurrentName)
	cfg.Epochs = 3
	cfg.TensorboardDir = ""
	tr, err = Build(context.TODO(), cfg, dist.Single())
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if tr.StartEpoch() != 2 {
		t.Errorf("start epoch = %d, want 2", tr.StartEpoch())
	}
}

func TestBuildErrors(t *testing.T) {
	cfg := testConfig("", 1)
	cfg.Device = "tpu"
	if _, err := Build(context.TODO(), cfg, dist.Single()); err == nil {
		t.Error("Build with an unknown device succeeded")
	}
	cfg.Device = "cpu"
	cfg.Data = t.TempDir()
	if _, err := Build(context.TODO(), cfg, dist.Single()); err == nil {
		t.Error("Build without data succeeded")
	}
}
