// Package dist initializes the distributed context of a training process.
package dist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frostml/frost/srcs/go/frost/collective"
	"github.com/frostml/frost/srcs/go/frost/env"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/pkg/errors"
)

// Context is the immutable view of the process group a worker belongs to.
type Context struct {
	Rank          int
	WorldSize     int
	LocalDevice   int
	IsMain        bool
	IsDistributed bool
	Collective    collective.Collective
}

// Single is the context of a non-distributed run.
func Single() *Context {
	return &Context{
		WorldSize:  1,
		IsMain:     true,
		Collective: collective.Local{},
	}
}

// FromCollective builds the context of a member of an already formed group.
func FromCollective(c collective.Collective, localDevice int) *Context {
	return &Context{
		Rank:          c.Rank(),
		WorldSize:     c.Size(),
		LocalDevice:   localDevice,
		IsMain:        c.Rank() == 0,
		IsDistributed: c.Size() > 1,
		Collective:    c,
	}
}

func (c *Context) String() string {
	if !c.IsDistributed {
		return "single process"
	}
	return fmt.Sprintf("rank %d of %d (local device %d)", c.Rank, c.WorldSize, c.LocalDevice)
}

// Close leaves the group.
func (c *Context) Close() error {
	return c.Collective.Close()
}

// Init detects the launch parameters from the environment and joins the
// process group. Without launch parameters it returns a single-process context.
// worldSize is only used when the launcher does not export one.
func Init(ctx context.Context, worldSize int, distURL string, timeout time.Duration) (*Context, error) {
	l, err := env.ParseLaunchFromEnv(worldSize)
	if err != nil {
		return nil, err
	}
	return initFrom(ctx, l, distURL, timeout)
}

func initFrom(ctx context.Context, l *env.Launch, distURL string, timeout time.Duration) (*Context, error) {
	if !l.Distributed() {
		log.Infof("not using distributed mode")
		return Single(), nil
	}
	addr, err := ParseURL(distURL, l)
	if err != nil {
		return nil, err
	}
	log.Infof("| distributed init (rank %d of %d, from %s): %s", l.Rank, l.WorldSize, l.Source, distURL)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, err := collective.Join(ctx, *addr, l.Rank, l.WorldSize, l.RunID)
	if err != nil {
		return nil, err
	}
	if err := g.Barrier(ctx); err != nil {
		g.Close()
		return nil, errors.Wrap(err, "rendezvous barrier")
	}
	c := FromCollective(g, l.LocalRank)
	c.IsDistributed = true
	setupForDistributed(c.IsMain)
	return c, nil
}

// ParseURL resolves the rendezvous address: env:// reads MASTER_ADDR and
// MASTER_PORT from the launch, tcp://host:port is used as is.
func ParseURL(distURL string, l *env.Launch) (*plan.NetAddr, error) {
	if distURL == "env://" {
		if len(l.MasterAddr) == 0 {
			return nil, errors.Errorf("%s is required by %s", env.MasterAddrEnvKey, distURL)
		}
		return plan.ParseNetAddr(fmt.Sprintf("%s:%d", l.MasterAddr, l.MasterPort))
	}
	if hostPort, ok := strings.CutPrefix(distURL, "tcp://"); ok {
		addr, err := plan.ParseNetAddr(hostPort)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dist url %q", distURL)
		}
		return addr, nil
	}
	return nil, errors.Errorf("unsupported dist url %q", distURL)
}

// setupForDistributed keeps informational output on the main process only.
func setupForDistributed(isMain bool) {
	if !isMain && log.GetLevel() < log.Warn {
		log.SetLevel(log.Warn)
	}
}
