// Package launcher starts the worker processes of a distributed training run
// and exports the launch environment each of them reads at startup.
package launcher

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/frostml/frost/srcs/go/frost/env"
	"github.com/frostml/frost/srcs/go/plan"
	"github.com/frostml/frost/srcs/go/plan/hostfile"
)

type FlagSet struct {
	ClusterSize int
	HostList    string
	HostFile    string
	Hosts       plan.HostList

	User    string
	KeyFile string
	SSH     bool

	Self  string
	NIC   string
	Port  int
	RunID string

	Timeout    time.Duration
	VerboseLog bool
	LogDir     string
	Logfile    string
	Quiet      bool

	Prog string
	Args []string
}

func (f *FlagSet) Register(flag *flag.FlagSet) {
	flag.IntVar(&f.ClusterSize, "np", 1, "number of workers")
	flag.StringVar(&f.HostList, "H", plan.DefaultHostSpec.String(), "comma separated list of <internal IP>:<nslots>[:<public addr>]")
	flag.StringVar(&f.HostFile, "hostfile", "", "path to an mpirun style hostfile, overrides -H")

	flag.StringVar(&f.User, "u", "", "user name for ssh")
	flag.StringVar(&f.KeyFile, "i", "", "private key file for ssh")
	flag.BoolVar(&f.SSH, "ssh", false, "start the workers of all hosts over ssh")

	flag.StringVar(&f.Self, "self", "", "internal IPv4")
	flag.StringVar(&f.NIC, "nic", "", "network interface name, for infer self IP")
	flag.IntVar(&f.Port, "port", env.DefaultMasterPort, "rendezvous port on the first host")
	flag.StringVar(&f.RunID, "run-id", "", "id shared by the workers of a run, generated if empty")

	flag.DurationVar(&f.Timeout, "timeout", 0, "timeout")
	flag.BoolVar(&f.VerboseLog, "v", true, "show task log")
	flag.StringVar(&f.LogDir, "logdir", ".", "directory of the worker log files")
	flag.StringVar(&f.Logfile, "logfile", "", "path to log file")
	flag.BoolVar(&f.Quiet, "q", false, "don't log debug info")
}

var errMissingProgramName = errors.New("missing program name")

// Parse parses args, args[0] being the program name.
func (f *FlagSet) Parse(args []string) error {
	commandLine := flag.NewFlagSet(args[0], flag.ContinueOnError)
	f.Register(commandLine)
	if err := commandLine.Parse(args[1:]); err != nil {
		return err
	}
	var err error
	if len(f.HostFile) > 0 {
		f.Hosts, err = hostfile.ParseFile(f.HostFile)
	} else {
		f.Hosts, err = plan.ParseHostList(f.HostList)
	}
	if err != nil {
		return fmt.Errorf("failed to parse hosts: %v", err)
	}
	if len(f.Hosts) == 0 {
		return errors.New("empty host list")
	}
	if f.Port <= 0 || f.Port > 0xffff {
		return fmt.Errorf("invalid port %d", f.Port)
	}
	rest := commandLine.Args()
	if len(rest) < 1 {
		return errMissingProgramName
	}
	f.Prog = rest[0]
	f.Args = rest[1:]
	return nil
}
