package local

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/proc"
	"github.com/frostml/frost/srcs/go/utils/iostream"
	"github.com/frostml/frost/srcs/go/utils/xterm"
)

type Runner struct {
	Name          string
	Color         xterm.Color
	LogDir        string
	LogFilePrefix string
	VerboseLog    bool
}

func (r Runner) defaultRedirectors() []*iostream.StdWriters {
	var redirectors []*iostream.StdWriters
	if r.VerboseLog {
		redirectors = append(redirectors, iostream.NewXTermRedirector(r.Name, r.Color))
	}
	if len(r.LogFilePrefix) > 0 {
		redirectors = append(redirectors, iostream.NewFileRedirector(path.Join(r.LogDir, r.LogFilePrefix)))
	}
	return redirectors
}

// Run runs cmd until it exits or ctx is done, in which case it is killed.
func (r Runner) Run(ctx context.Context, cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	defer stdout.Close()
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	defer stderr.Close()
	results := iostream.StdReaders{Stdout: stdout, Stderr: stderr}
	firstStderr := &iostream.FirstLineWriter{}
	redirectors := append(r.defaultRedirectors(), &iostream.StdWriters{Stdout: &iostream.Null{}, Stderr: firstStderr})
	defer func() {
		for _, w := range redirectors {
			w.Close()
		}
	}()
	ioDone := results.Stream(redirectors...)
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		ioDone.Wait() // call this before cmd.Wait!
		done <- cmd.Wait()
	}()
	select {
	case <-ctx.Done():
		select {
		case err := <-done:
			return r.withStderr(err, firstStderr)
		default:
		}
		cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		return r.withStderr(err, firstStderr)
	}
}

func (r Runner) withStderr(err error, first *iostream.FirstLineWriter) error {
	if err != nil && len(first.First) > 0 {
		return fmt.Errorf("%v: %s", err, first.First)
	}
	return err
}

// RunAll runs ps in parallel, the first failure cancels the others.
// Tasks killed by that cancellation are not counted as failed.
func RunAll(ctx context.Context, ps []proc.Proc, verboseLog bool) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	var fail int32
	var firstErr error
	var once sync.Once
	for i, p := range ps {
		wg.Add(1)
		go func(i int, p proc.Proc) {
			defer wg.Done()
			t0 := time.Now()
			r := &Runner{
				Name:          p.Name,
				Color:         xterm.BasicColors.Choose(i),
				VerboseLog:    verboseLog,
				LogFilePrefix: strings.Replace(p.Name, "/", "-", -1),
				LogDir:        p.LogDir,
			}
			err := r.Run(ctx, p.Cmd())
			switch {
			case err == nil:
				log.Debugf("#<%s> finished successfully, took %s", p.Name, time.Since(t0))
			case errors.Is(err, context.Canceled) && parent.Err() == nil:
				log.Warnf("#<%s> cancelled after %s", p.Name, time.Since(t0))
			default:
				log.Errorf("#<%s> exited with error: %v, took %s", p.Name, err, time.Since(t0))
				atomic.AddInt32(&fail, 1)
				once.Do(func() { firstErr = fmt.Errorf("%s: %v", p.Name, err) })
				cancel()
			}
		}(i, p)
	}
	wg.Wait()
	if fail != 0 {
		return fmt.Errorf("%d tasks failed, first: %v", fail, firstErr)
	}
	return nil
}
