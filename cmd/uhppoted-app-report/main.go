package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhppoted/uhppoted-app-report/commands"
)

var cli = []commands.Command{
	&commands.RunCmd,
	&commands.AuthoriseCmd,
	&commands.LocateCmd,
	&commands.RenderCmd,
	&commands.ExtractCmd,
	&commands.SendCmd,
	&commands.HistoryCmd,
	&commands.VersionCmd,
}

var options = commands.Options{
	Debug: false,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := commands.Root(&options, cli...)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %v\n\n", err)
		cancel()
		os.Exit(1)
	}
}
