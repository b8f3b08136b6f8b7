// Command dxljoints drives the Dynamixel actuators of a robot described by a
// layout file.
//
// Usage:
//
//	dxljoints [flags] <command> [command flags]
//
// Flags:
//
//	-config string      Layout file path (default "layout.yaml")
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Commands:
//
//	poll    Read every joint angle on every channel and print the values
//	sweep   Enable torque and sweep all goal positions upward
//	torque  Switch motor output on or off: torque on|off
//
// Examples:
//
//	# Print 1023 rounds of raw joint values
//	dxljoints -config robot.yaml poll
//
//	# Poll once a second and store the angles in InfluxDB
//	INFLUX_TOKEN=... dxljoints poll -interval 1s -influx http://localhost:8086 \
//	    -influx-org lab -influx-bucket joints
//
//	# Relax every joint
//	dxljoints torque off
//
// Each channel is driven from its own goroutine; interrupt stops all of them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hipsterbrown/dynamixel-joints/config"
	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
	exitRunError     = 2
)

// app carries the process wiring that tests replace.
type app struct {
	stdout, stderr io.Writer
	opener         dynamixel.Opener
	logger         *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.run(ctx, os.Args[1:]))
}

func (a *app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("dxljoints", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "layout.yaml", "Layout file path")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.Usage = func() { printUsage(a.stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return exitCommandError
	}
	if fs.NArg() == 0 {
		printUsage(a.stderr, fs)
		return exitCommandError
	}

	if a.logger == nil {
		logger, err := newLogger(a.stderr, *logLevel)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitCommandError
		}
		a.logger = logger
	}

	var cmd func(context.Context, *config.Config, []string) error
	switch name := fs.Arg(0); name {
	case "poll":
		cmd = a.poll
	case "sweep":
		cmd = a.sweep
	case "torque":
		cmd = a.torque
	case "help":
		printUsage(a.stdout, fs)
		return exitSuccess
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n", name)
		printUsage(a.stderr, fs)
		return exitCommandError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitCommandError
	}

	if err := cmd(ctx, cfg, fs.Args()[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			if errors.Is(ue.err, flag.ErrHelp) {
				return exitSuccess
			}
			fmt.Fprintf(a.stderr, "Error: %v\n", ue.err)
			return exitCommandError
		}
		a.logger.Error("command failed", "command", fs.Arg(0), "err", err)
		return exitRunError
	}
	return exitSuccess
}

// usageError marks bad command-line input, as opposed to a failure on the bus.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, `dxljoints - drive Dynamixel joints over serial buses

Usage:
  dxljoints [flags] <command> [command flags]

Commands:
  poll     Read all joint angles, repeatedly
  sweep    Enable torque and sweep goal positions
  torque   Switch motor output: torque on|off

Flags:`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
