package remote

import (
	"context"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/proc"
	"github.com/frostml/frost/srcs/go/utils/iostream"
	"github.com/frostml/frost/srcs/go/utils/ssh"
	"github.com/frostml/frost/srcs/go/utils/xterm"
)

// Runner starts processes on their public address over ssh.
type Runner struct {
	User       string
	KeyFile    string
	LogDir     string
	VerboseLog bool
}

func (r Runner) redirectors(i int, p proc.Proc) []*iostream.StdWriters {
	var redirectors []*iostream.StdWriters
	if r.VerboseLog {
		redirectors = append(redirectors, iostream.NewXTermRedirector(p.Name, xterm.BasicColors.Choose(i)))
	}
	return append(redirectors, iostream.NewFileRedirector(path.Join(r.LogDir, p.Name)))
}

func (r Runner) run(ctx context.Context, i int, p proc.Proc) error {
	config := ssh.Config{
		Host:    p.PubAddr,
		User:    r.User,
		KeyFile: r.KeyFile,
	}
	client, err := ssh.New(config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", p.PubAddr, err)
	}
	defer client.Close()
	redirectors := r.redirectors(i, p)
	defer func() {
		for _, w := range redirectors {
			w.Close()
		}
	}()
	return client.Watch(ctx, p.Script(), redirectors)
}

// RunAll runs ps in parallel, the first failure cancels the others.
func (r Runner) RunAll(ctx context.Context, ps []proc.Proc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	var fail int32
	for i, p := range ps {
		wg.Add(1)
		go func(i int, p proc.Proc) {
			defer wg.Done()
			t0 := time.Now()
			if err := r.run(ctx, i, p); err != nil {
				log.Errorf("#<%s> exited with error: %v, took %s", p.Name, err, time.Since(t0))
				atomic.AddInt32(&fail, 1)
				cancel()
				return
			}
			log.Debugf("#<%s> finished successfully, took %s", p.Name, time.Since(t0))
		}(i, p)
	}
	wg.Wait()
	if fail != 0 {
		return fmt.Errorf("%d tasks failed", fail)
	}
	return nil
}
