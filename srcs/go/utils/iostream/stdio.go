package iostream

import (
	"io"
	"os"
	"strings"
	"sync"
)

var Std = StdWriters{
	Stdout: os.Stdout,
	Stderr: os.Stderr,
}

type StdReaders struct {
	Stdout io.Reader
	Stderr io.Reader
}

type StdWriters struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Close closes the writers that are closers, except the standard streams.
func (w *StdWriters) Close() error {
	var err error
	for _, x := range []io.Writer{w.Stdout, w.Stderr} {
		if x == os.Stdout || x == os.Stderr {
			continue
		}
		if c, ok := x.(io.Closer); ok {
			if e := c.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}

// Stream tees both readers into ws until EOF, Wait blocks until then.
func (r StdReaders) Stream(ws ...*StdWriters) interface{ Wait() } {
	var outs, errs []io.Writer
	for _, w := range ws {
		outs = append(outs, w.Stdout)
		errs = append(errs, w.Stderr)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		Tee(r.Stdout, outs...)
		wg.Done()
	}()
	go func() {
		Tee(r.Stderr, errs...)
		wg.Done()
	}()
	return &wg
}

// FirstLineWriter remembers the first non-empty line written to it.
type FirstLineWriter struct {
	First string
}

func (w *FirstLineWriter) Write(bs []byte) (int, error) {
	if len(w.First) == 0 {
		w.First = strings.TrimSpace(string(bs))
	}
	return len(bs), nil
}

// Null implements /dev/null
type Null struct{}

func (w *Null) Write(bs []byte) (int, error) {
	return len(bs), nil
}
