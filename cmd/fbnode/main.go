package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gandaldf/firebird"
	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(afero.NewOsFs(), &firebird.SQLConnector{})
	if err := root.ExecuteContext(ctx); err != nil {
		newLogger().Error("run failed", "err", err)
		os.Exit(1)
	}
}
