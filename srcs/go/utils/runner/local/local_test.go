package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frostml/frost/srcs/go/proc"
)

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	ps := []proc.Proc{
		{Name: "w0", Prog: "sh", Args: []string{"-c", "echo $RANK"}, Envs: proc.Envs{"RANK": "0"}, LogDir: dir},
		{Name: "w1", Prog: "sh", Args: []string{"-c", "echo $RANK"}, Envs: proc.Envs{"RANK": "1"}, LogDir: dir},
	}
	if err := RunAll(context.TODO(), ps, false); err != nil {
		t.Fatal(err)
	}
	for i, p := range ps {
		bs, err := os.ReadFile(filepath.Join(dir, p.Name+".stdout.log"))
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(string(bs)); got != p.Envs["RANK"] {
			t.Errorf("#%d printed %q", i, got)
		}
	}
}

func TestRunAllFailure(t *testing.T) {
	for round := 0; round < 5; round++ {
		ps := []proc.Proc{
			{Name: "ok", Prog: "sh", Args: []string{"-c", "exit 0"}, LogDir: t.TempDir()},
			{Name: "bad", Prog: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}, LogDir: t.TempDir()},
			{Name: "slow", Prog: "sleep", Args: []string{"10"}, LogDir: t.TempDir()},
		}
		t0 := time.Now()
		err := RunAll(context.TODO(), ps, false)
		if err == nil {
			t.Fatal("RunAll succeeded with a failing task")
		}
		if msg := err.Error(); !strings.HasPrefix(msg, "1 tasks failed") || !strings.Contains(msg, "boom") {
			t.Errorf("round %d: RunAll = %v", round, err)
		}
		if d := time.Since(t0); d > 5*time.Second {
			t.Errorf("round %d: slow task was not cancelled, took %s", round, d)
		}
	}
}

func TestRunAllParentCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	ps := []proc.Proc{
		{Name: "s0", Prog: "sleep", Args: []string{"10"}, LogDir: t.TempDir()},
		{Name: "s1", Prog: "sleep", Args: []string{"10"}, LogDir: t.TempDir()},
	}
	err := RunAll(ctx, ps, false)
	if err == nil || !strings.HasPrefix(err.Error(), "2 tasks failed") {
		t.Errorf("RunAll = %v", err)
	}
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p := proc.Proc{Name: "sleep", Prog: "sleep", Args: []string{"10"}}
	t0 := time.Now()
	if err := (Runner{Name: p.Name}).Run(ctx, p.Cmd()); err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want %v", err, context.DeadlineExceeded)
	}
	if d := time.Since(t0); d > 5*time.Second {
		t.Errorf("Run took %s after cancel", d)
	}
}
