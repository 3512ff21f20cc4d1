package main

import (
	"context"
	"os"
	"time"

	"github.com/frostml/frost/srcs/go/frost/dist"
	"github.com/frostml/frost/srcs/go/frost/trainer"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/utils"
)

var f trainer.FlagSet

func init() {
	if err := f.Parse(os.Args); err != nil {
		utils.ExitErr(err)
	}
	if !f.Quiet {
		utils.LogArgs()
		utils.LogFrostEnv()
		utils.LogCudaEnv()
		utils.LogCPUInfo()
	}
}

func main() {
	t0 := time.Now()
	defer func(prog string) { log.Infof("%s took %s", prog, time.Since(t0)) }(utils.ProgName())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer utils.Trap(func(sig os.Signal) {
		log.Warnf("%s trapped", sig)
		cancel()
	})()
	if err := run(ctx); err != nil {
		log.Errorf("%s failed: %v", utils.ProgName(), err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	dc, err := dist.Init(ctx, f.WorldSize, f.DistURL, f.RendezvousTimeout)
	if err != nil {
		return err
	}
	defer dc.Close()
	log.Infof("%s", dc)
	t, err := trainer.Build(ctx, f.Config, dc)
	if err != nil {
		return err
	}
	defer t.Close()
	return t.Run(ctx)
}
