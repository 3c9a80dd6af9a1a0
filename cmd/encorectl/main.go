// Package main runs the encore command-line client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	ctlcmd "github.com/louisbranch/encore/internal/cmd/encorectl"
	"github.com/louisbranch/encore/internal/platform/config"
)

func main() {
	cfg, err := ctlcmd.LoadConfig()
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctlcmd.NewRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		config.Exitf("%v", err)
	}
}
