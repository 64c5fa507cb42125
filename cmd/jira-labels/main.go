package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jadenj13/jira-labels/internals/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("jira-labels failed", "err", err)
		fmt.Fprintln(os.Stdout, cli.ActionError(err))
		stop()
		os.Exit(1)
	}
}
