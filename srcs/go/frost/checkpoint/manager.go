package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/frostml/frost/srcs/go/log"
	"github.com/pkg/errors"
)

const (
	CurrentName = `checkpoint.pth`
	BestName    = `best_checkpoint.pth`
)

// ErrNoModel is returned when loading a checkpoint without model state.
var ErrNoModel = errors.New("checkpoint has no model state")

// Load reads a checkpoint, it fails if the file is missing, corrupt or has no
// model state. Other fields may be absent.
func Load(path string) (*Record, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Unmarshal(bs)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if !r.Has(Model) {
		return nil, errors.Wrap(ErrNoModel, path)
	}
	return r, nil
}

// Manager writes checkpoints into a directory. Only the main process writes,
// the calls of other processes are no-ops.
type Manager struct {
	dir    string
	isMain bool
	saved  int
}

// NewManager creates dir if it does not exist. An empty dir disables saving.
func NewManager(dir string, isMain bool) (*Manager, error) {
	if len(dir) > 0 {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, err
		}
	}
	return &Manager{dir: dir, isMain: isMain}, nil
}

func (m *Manager) Enabled() bool {
	return len(m.dir) > 0
}

// Saved is the number of files written by this process.
func (m *Manager) Saved() int {
	return m.saved
}

func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Save writes r to name, replacing it atomically.
func (m *Manager) Save(r *Record, name string) error {
	if !m.Enabled() || !m.isMain {
		return nil
	}
	path := m.Path(name)
	if err := writeFileAtomic(path, r.Marshal()); err != nil {
		return errors.Wrapf(err, "save checkpoint of epoch %d", r.Epoch())
	}
	m.saved++
	log.Debugf("saved checkpoint of epoch %d to %s", r.Epoch(), path)
	return nil
}

func (m *Manager) SaveCurrent(r *Record) error {
	return m.Save(r, CurrentName)
}

func (m *Manager) SaveBest(r *Record) error {
	return m.Save(r, BestName)
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
