package iostream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// workerLog is a per-worker log file opened on first Write. It appends, so a
// worker restarted to resume from a checkpoint keeps the earlier output.
// If the file cannot be opened, output falls back to stderr.
type workerLog struct {
	sync.Mutex
	path    string
	w       io.WriteCloser
	openErr error
}

func NewLazyFile(path string) io.WriteCloser {
	return &workerLog{path: path}
}

func (l *workerLog) Write(bs []byte) (int, error) {
	l.Lock()
	defer l.Unlock()
	if l.w == nil && l.openErr == nil {
		if l.openErr = l.open(); l.openErr != nil {
			fmt.Fprintf(os.Stderr, "cannot open worker log %s, using stderr: %v\n", l.path, l.openErr)
		}
	}
	if l.openErr != nil {
		return os.Stderr.Write(bs)
	}
	return l.w.Write(bs)
}

func (l *workerLog) Close() error {
	l.Lock()
	defer l.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}

func (l *workerLog) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), os.ModePerm); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.w = f
	return nil
}

// NewFileRedirector logs a worker's streams to <prefix>.stdout.log and
// <prefix>.stderr.log.
func NewFileRedirector(prefix string) *StdWriters {
	return &StdWriters{
		Stdout: NewLazyFile(prefix + ".stdout.log"),
		Stderr: NewLazyFile(prefix + ".stderr.log"),
	}
}
