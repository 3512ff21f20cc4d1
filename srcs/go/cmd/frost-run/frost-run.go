package main

import (
	"context"
	"os"
	"time"

	"github.com/frostml/frost/srcs/go/frost/launcher"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/utils"
)

var f launcher.FlagSet

func init() {
	if err := f.Parse(os.Args); err != nil {
		utils.ExitErr(err)
	}
	if !f.Quiet {
		utils.LogArgs()
		utils.LogFrostEnv()
		utils.LogCudaEnv()
	}
}

func main() {
	if len(f.Logfile) > 0 {
		lf, err := os.Create(f.Logfile)
		if err != nil {
			utils.ExitErr(err)
		}
		defer lf.Close()
		log.SetOutput(lf)
	}
	t0 := time.Now()
	defer func(prog string) { log.Infof("%s took %s", prog, time.Since(t0)) }(utils.ProgName())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if f.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	defer utils.Trap(func(sig os.Signal) {
		log.Warnf("%s trapped", sig)
		cancel()
	})()
	if err := launcher.Run(ctx, &f); err != nil {
		log.Errorf("%s failed: %v", utils.ProgName(), err)
		os.Exit(1)
	}
}
