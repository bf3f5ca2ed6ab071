// cmd/obs/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/cli"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		// SilenceErrors is set on the root command
		cli.Console.Error("%v", err)
		stop()
		os.Exit(commands.ExitCode(err))
	}
}
