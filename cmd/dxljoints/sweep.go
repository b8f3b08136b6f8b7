package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"time"

	"github.com/hipsterbrown/dynamixel-joints/config"
)

type sweepOptions struct {
	steps  int
	stride int
	delay  time.Duration
}

func parseSweepArgs(args []string, stderr io.Writer) (sweepOptions, error) {
	var opts sweepOptions
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.steps, "steps", 1023, "Number of goal updates")
	fs.IntVar(&opts.stride, "stride", 4, "Register steps per update")
	fs.DurationVar(&opts.delay, "delay", time.Millisecond, "Pause between updates")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.steps <= 0 || opts.stride <= 0 {
		return opts, errors.New("-steps and -stride must be positive")
	}
	return opts, nil
}

func (a *app) sweep(ctx context.Context, cfg *config.Config, args []string) error {
	opts, err := parseSweepArgs(args, a.stderr)
	if err != nil {
		return usageError{err}
	}

	r, err := a.openRig(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.each(ctx, func(ctx context.Context, ch *channel) error {
		return sweepBus(ctx, ch, opts)
	})
}

// sweepBus enables torque and then raises every goal position by stride
// register steps per update, starting from zero. Positions stop at each
// model's maximum.
func sweepBus(ctx context.Context, ch *channel, opts sweepOptions) error {
	if err := ch.bus.EnableTorques(ctx); err != nil {
		return err
	}

	actuators := ch.bus.Actuators()
	for i := 0; i < opts.steps; i++ {
		for _, a := range actuators {
			value := min(i*opts.stride, a.Model().MaxPosition)
			a.SetGoalAngle(a.Encoding().Decode(value, a.CenterOffset()))
		}
		if err := ch.bus.SendGoalAngles(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.delay):
		}
	}
	return nil
}
