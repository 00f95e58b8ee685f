// Command codive is the terminal client: create or join a room, wait for the
// host, solve the problem set and read the report.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

const usage = `usage: codive [flags] <command>

commands:
  create         create a room and wait for participants
  join           join a room by invite code
  resume         continue a stored session
  report         show the report for the stored session
  guests <code>  list a room's participants
  reset          forget the stored session

flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "codive:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("codive", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	configDir := fs.String("config", ".", "directory containing config.yaml")
	fs.String("backend", "", "backend base URL")
	fs.String("state", "", "session state file")
	fs.String("log-mode", "", "debug or release")
	fs.String("log-file", "", "log file path")
	fs.String("metrics", "", "serve client metrics on this address")
	watch := fs.Bool("watch", false, "report: keep refreshing the rank")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(*configDir, fs, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd := fs.Arg(0); cmd {
	case "create":
		return a.create(ctx)
	case "join":
		return a.join(ctx)
	case "resume":
		return a.resume(ctx)
	case "report":
		return a.report(ctx, *watch)
	case "guests":
		if fs.NArg() < 2 {
			return errors.New("guests needs a room code")
		}
		return a.guests(ctx, fs.Arg(1))
	case "reset":
		return a.sess.Reset()
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
