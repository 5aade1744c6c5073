package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goliatone/go-iom/pkg/renderers/tui"
)

type command struct {
	name    string
	summary string
	offline bool
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "create", summary: "fill in and submit a new IOM from a template", run: runCreate},
	{name: "edit", summary: "edit a draft or rejected IOM", run: runEdit},
	{name: "show", summary: "render an IOM preview", run: runShow},
	{name: "act", summary: "apply a workflow action to an IOM", run: runAct},
	{name: "steps", summary: "list the approval steps of an IOM", run: runSteps},
	{name: "step", summary: "approve or reject an approval step", run: runStep},
	{name: "template", summary: "validate template files (template validate <file>...)", offline: true, run: runTemplate},
	{name: "drafts", summary: "list, show or delete saved drafts", offline: true, run: runDrafts},
}

func main() {
	envFile := flag.String("env", "", "optional .env file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a, err := newApp(ctx, *envFile, cmd.offline)
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "iomctl: %v\n", err)
		os.Exit(1)
	}

	err = cmd.run(ctx, a, args[1:])
	a.Close()
	stop()
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case errors.Is(err, tui.ErrAborted):
		fmt.Fprintln(os.Stderr, "aborted")
		os.Exit(130)
	default:
		fmt.Fprintf(os.Stderr, "iomctl %s: %v\n", cmd.name, err)
		os.Exit(1)
	}
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [-env file] <command> [flags]\n\nCommands:\n", filepath.Base(os.Args[0]))
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-9s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(out, "\nSettings are read from ITSM_* environment variables (ITSM_API_URL, ITSM_API_TOKEN, ...).\n")
}
