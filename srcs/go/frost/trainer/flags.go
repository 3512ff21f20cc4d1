package trainer

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/frostml/frost/srcs/go/frost/config"
)

// Config is the immutable configuration of a training run.
type Config struct {
	Data           string
	Device         string
	Epochs         int
	Resume         string
	StartEpoch     int
	Seed           *int64
	SaveDir        string
	TensorboardDir string

	NumClasses int
	BatchSize  int
	Workers    int
	PinMemory  bool

	LR       float64
	StepSize int
	Gamma    float64

	WorldSize int
	DistURL   string

	Progress          bool
	MonitorPort       int
	RendezvousTimeout time.Duration
	Quiet             bool
}

type seedFlag struct {
	seed **int64
}

func (f seedFlag) String() string {
	if f.seed == nil || *f.seed == nil {
		return ""
	}
	return strconv.FormatInt(**f.seed, 10)
}

func (f seedFlag) Set(val string) error {
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return err
	}
	*f.seed = &n
	return nil
}

type FlagSet struct {
	Config
	noPinMemory bool
}

func (f *FlagSet) Register(flag *flag.FlagSet) {
	flag.StringVar(&f.Device, "device", "cuda", "the device to use, the local device is used in distributed mode")
	flag.IntVar(&f.Epochs, "epochs", 300, "the number of total epochs to run")
	flag.StringVar(&f.Resume, "resume", "", "resume training from the checkpoint")
	flag.IntVar(&f.StartEpoch, "start-epoch", 0, "the manual epoch number (useful on restarts)")
	flag.Var(seedFlag{&f.Seed}, "seed", "the seed for reproducibility")
	flag.StringVar(&f.SaveDir, "save-dir", "", "the checkpoint will be saved here")
	flag.StringVar(&f.TensorboardDir, "tensorboard-dir", "", "TensorBoard event files will be saved here")

	flag.IntVar(&f.NumClasses, "num-classes", 1000, "the number of classes in the dataset")

	flag.IntVar(&f.BatchSize, "batch-size", 64, "mini batch size for each device")
	flag.IntVar(&f.Workers, "workers", 8, "the number of dataloader workers")
	flag.BoolVar(&f.PinMemory, "pin-memory", true, "pin memory for more efficient data transfer")
	flag.BoolVar(&f.noPinMemory, "no-pin-memory", false, "disable -pin-memory")

	flag.Float64Var(&f.LR, "lr", 1e-3, "initial learning rate")
	flag.IntVar(&f.StepSize, "step-size", 30, "decay the learning rate every step-size epochs")
	flag.Float64Var(&f.Gamma, "gamma", 1e-1, "learning rate decay factor")

	flag.IntVar(&f.WorldSize, "world-size", 1, "the number of processes for distributed mode")
	flag.StringVar(&f.DistURL, "dist-url", "env://", "the url for distributed mode")

	flag.BoolVar(&f.Progress, "progress", false, "show a progress bar instead of one log line per batch")
	flag.IntVar(&f.MonitorPort, "monitor-port", 0, "serve Prometheus metrics on this port if not zero")
	flag.DurationVar(&f.RendezvousTimeout, "rdzv-timeout", config.RendezvousTimeout, "timeout of the distributed rendezvous")
	flag.BoolVar(&f.Quiet, "q", false, "don't log debug info")
}

var errMissingDataPath = errors.New("missing data path")

// Parse parses args, args[0] being the program name. Flags may come before
// or after the data path.
func (f *FlagSet) Parse(args []string) error {
	commandLine := flag.NewFlagSet(args[0], flag.ContinueOnError)
	f.Register(commandLine)
	var positional []string
	for rest := args[1:]; ; {
		if err := commandLine.Parse(rest); err != nil {
			return err
		}
		if commandLine.NArg() == 0 {
			break
		}
		positional = append(positional, commandLine.Arg(0))
		rest = commandLine.Args()[1:]
	}
	if f.noPinMemory {
		f.PinMemory = false
	}
	switch len(positional) {
	case 0:
		return errMissingDataPath
	case 1:
		f.Data = positional[0]
		return nil
	}
	return fmt.Errorf("unexpected arguments %q after data path", positional[1:])
}
