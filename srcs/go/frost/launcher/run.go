package launcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/frostml/frost/srcs/go/utils/runner/local"
	"github.com/frostml/frost/srcs/go/utils/runner/remote"
	"github.com/google/uuid"
)

// runID returns the id given by -run-id. Otherwise a launcher that starts
// every worker generates a fresh one, and launchers running on each host of
// a multi-host job derive the same one from the job description.
func (f *FlagSet) runID() (uuid.UUID, error) {
	if len(f.RunID) > 0 {
		return uuid.Parse(f.RunID)
	}
	if f.SSH || len(f.Hosts) == 1 {
		return uuid.New(), nil
	}
	desc := strings.Join(append([]string{f.Hosts.String(), strconv.Itoa(f.Port), strconv.Itoa(f.ClusterSize), f.Prog}, f.Args...), " ")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(desc)), nil
}

// NewJob creates the job described by f.
func (f *FlagSet) NewJob() (*Job, error) {
	id, err := f.runID()
	if err != nil {
		return nil, fmt.Errorf("invalid -run-id: %v", err)
	}
	return &Job{
		HostList: f.Hosts,
		Port:     uint16(f.Port),
		RunID:    id,
		Prog:     f.Prog,
		Args:     f.Args,
		LogDir:   f.LogDir,
	}, nil
}

// Run starts the workers of this host, or of all hosts over ssh, and waits
// for them.
func Run(ctx context.Context, f *FlagSet) error {
	j, err := f.NewJob()
	if err != nil {
		return err
	}
	log.Infof("run %s: %d workers on %s, rendezvous at %s", j.RunID, f.ClusterSize, f.Hosts, j.Master())
	if f.SSH {
		ps, err := j.CreateAllProcs(f.ClusterSize)
		if err != nil {
			return err
		}
		r := remote.Runner{User: f.User, KeyFile: f.KeyFile, LogDir: f.LogDir, VerboseLog: f.VerboseLog}
		return r.RunAll(ctx, ps)
	}
	self, err := InferSelfIPv4(f.Self, f.NIC)
	if err != nil {
		return err
	}
	if _, ok := f.Hosts.Lookup(self); !ok {
		return fmt.Errorf("%s not in %s", plan.FormatIPv4(self), f.Hosts)
	}
	ps, err := j.CreateProcs(f.ClusterSize, self)
	if err != nil {
		return err
	}
	if len(ps) == 0 {
		log.Warnf("no worker is placed on %s", plan.FormatIPv4(self))
		return nil
	}
	log.Infof("starting %d workers on %s", len(ps), plan.FormatIPv4(self))
	return local.RunAll(ctx, ps, f.VerboseLog)
}
