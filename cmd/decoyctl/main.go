package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mikey/decoy-alerts/internal/di"
	"github.com/mikey/decoy-alerts/internal/ports"
	"go.uber.org/zap"
)

const usage = `Usage: decoyctl [global flags] <command> [flags]

Commands:
  add      register or replace a decoy
  list     list decoys with their alert counts
  events   show the most recent decoy hits

Run "decoyctl <command> -h" for command flags.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, err := di.ParseFlags("decoyctl", args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stderr, usage)
			return 0
		}
		return 2
	}
	if len(flags.Args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to build dependency container: %v\n", err)
		return 1
	}

	code := 0
	err = container.Invoke(func(logger *zap.Logger, store ports.Store) {
		defer logger.Sync()
		defer store.Close()
		code = dispatchCommand(flags.Args, store, stdout, stderr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

func dispatchCommand(args []string, store ports.Store, stdout, stderr io.Writer) int {
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "add":
		err = runAdd(rest, store, stdout, stderr)
	case "list":
		err = runList(rest, store, stdout, stderr)
	case "events":
		err = runEvents(rest, store, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
