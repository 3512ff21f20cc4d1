package launcher

import (
	"fmt"
	"os"
	"strconv"

	"github.com/frostml/frost/srcs/go/frost/config"
	"github.com/frostml/frost/srcs/go/frost/env"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/frostml/frost/srcs/go/proc"
	"github.com/google/uuid"
)

// Job describes np copies of a program spread over a host list. The first
// host runs the rendezvous coordinator on Port.
type Job struct {
	HostList plan.HostList
	Port     uint16
	RunID    uuid.UUID
	Prog     string
	Args     []string
	LogDir   string
}

var lookupEnv = os.LookupEnv

// Master is the address of the rendezvous coordinator.
func (j Job) Master() plan.NetAddr {
	return plan.NetAddr{IPv4: j.HostList[0].IPv4, Port: j.Port}
}

func (j Job) NewProc(s plan.Slot, np int) proc.Proc {
	master := j.Master()
	envs := proc.Envs{
		env.RankEnvKey:       strconv.Itoa(s.Rank),
		env.WorldSizeEnvKey:  strconv.Itoa(np),
		env.LocalRankEnvKey:  strconv.Itoa(s.LocalRank),
		env.MasterAddrEnvKey: plan.FormatIPv4(master.IPv4),
		env.MasterPortEnvKey: strconv.Itoa(int(master.Port)),
		env.RunIDEnvKey:      j.RunID.String(),
		env.ParentEnvKey:     plan.FormatIPv4(s.Host.IPv4),
	}
	if cudaIdx := env.CudaIndex(lookupEnv, s.LocalRank); cudaIdx >= 0 {
		envs[env.CudaVisibleDevicesKey] = strconv.Itoa(cudaIdx)
	} else {
		log.Warnf("no visible GPU for local rank %d of %s", s.LocalRank, plan.FormatIPv4(s.Host.IPv4))
	}
	return proc.Proc{
		Name:    fmt.Sprintf("%s.%d", plan.FormatIPv4(s.Host.IPv4), s.LocalRank),
		Prog:    j.Prog,
		Args:    j.Args,
		Envs:    proc.Merge(getConfigEnvs(), envs),
		IPv4:    s.Host.IPv4,
		PubAddr: s.Host.PublicAddr,
		LogDir:  j.LogDir,
	}
}

// CreateAllProcs places np workers on the host list, filling hosts in order.
func (j Job) CreateAllProcs(np int) ([]proc.Proc, error) {
	slots, err := j.HostList.GenSlots(np)
	if err != nil {
		return nil, err
	}
	var ps []proc.Proc
	for _, s := range slots {
		ps = append(ps, j.NewProc(s, np))
	}
	return ps, nil
}

// CreateProcs returns the workers of CreateAllProcs placed on host.
func (j Job) CreateProcs(np int, host uint32) ([]proc.Proc, error) {
	all, err := j.CreateAllProcs(np)
	if err != nil {
		return nil, err
	}
	var ps []proc.Proc
	for _, p := range all {
		if p.IPv4 == host {
			ps = append(ps, p)
		}
	}
	return ps, nil
}

func getConfigEnvs() proc.Envs {
	envs := make(proc.Envs)
	for _, k := range config.ConfigEnvKeys {
		if val, ok := lookupEnv(k); ok && len(val) > 0 {
			envs[k] = val
		}
	}
	return envs
}
