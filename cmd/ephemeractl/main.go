// Command ephemeractl manages Ephemera identities and talks to an Ephemera
// server: it signs and publishes posts, lists and deletes them, and checks
// signals offline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = map[string]command{
	"keygen": {"create a new signing identity", runKeygen},
	"whoami": {"print the author id of an identity", runWhoami},
	"post":   {"sign and publish a post", runPost},
	"list":   {"list posts, newest first", runList},
	"delete": {"sign and submit a delete for one of your posts", runDelete},
	"verify": {"check the signature of a signal read from a file or stdin", runVerify},
	"sweep":  {"run an orphan attachment sweep (admin)", runSweep},
}

var commandOrder = []string{"keygen", "whoami", "post", "list", "delete", "verify", "sweep"}

// cliEnv carries the process streams so commands can be run from tests
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, env, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stderr)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(env.stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	err := cmd.run(ctx, env, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ephemeractl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'ephemeractl <command> --help' for command flags.")
}
