package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hipsterbrown/dynamixel-joints/config"
	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
)

type pollOptions struct {
	rounds       int
	interval     time.Duration
	influxURL    string
	influxOrg    string
	influxBucket string
}

func parsePollArgs(args []string, stderr io.Writer) (pollOptions, error) {
	var opts pollOptions
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.rounds, "n", 1023, "Number of rounds; 0 polls until interrupted")
	fs.DurationVar(&opts.interval, "interval", 0, "Pause between rounds")
	fs.StringVar(&opts.influxURL, "influx", "", "InfluxDB server URL; token from INFLUX_TOKEN")
	fs.StringVar(&opts.influxOrg, "influx-org", "", "InfluxDB organization")
	fs.StringVar(&opts.influxBucket, "influx-bucket", "joints", "InfluxDB bucket")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.rounds < 0 {
		return opts, errors.New("-n must not be negative")
	}
	if opts.influxURL != "" && opts.influxOrg == "" {
		return opts, errors.New("-influx requires -influx-org")
	}
	return opts, nil
}

func (a *app) poll(ctx context.Context, cfg *config.Config, args []string) error {
	opts, err := parsePollArgs(args, a.stderr)
	if err != nil {
		return usageError{err}
	}

	r, err := a.openRig(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	var sink sampleSink
	if opts.influxURL != "" {
		sink = newInfluxSink(opts.influxURL, os.Getenv("INFLUX_TOKEN"), opts.influxOrg, opts.influxBucket, a.logger)
		defer sink.Close()
	}

	return a.pollRig(ctx, r, opts, sink)
}

// pollRig reads all channels in parallel once per round and prints one line
// per round: each channel's name followed by id:value pairs. Failed reads
// print as id:?.
func (a *app) pollRig(ctx context.Context, r *rig, opts pollOptions, sink sampleSink) error {
	results := make([]dynamixel.ReadResults, len(r.channels))
	index := make(map[*channel]int, len(r.channels))
	for i, ch := range r.channels {
		index[ch] = i
	}

	for round := 0; opts.rounds == 0 || round < opts.rounds; round++ {
		err := r.each(ctx, func(ctx context.Context, ch *channel) error {
			res := ch.bus.ReceiveCurrentAngles(ctx)
			if err := ctx.Err(); err != nil {
				return err
			}
			results[index[ch]] = res
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		now := time.Now()
		var line strings.Builder
		for i, ch := range r.channels {
			if i > 0 {
				line.WriteByte(' ')
			}
			line.WriteString(ch.name)
			for _, res := range results[i] {
				if res.Err != nil {
					fmt.Fprintf(&line, " %d:?", res.ID)
				} else {
					fmt.Fprintf(&line, " %d:%d", res.ID, res.Value)
				}
			}
			if sink != nil {
				sink.Record(ch.name, results[i], now)
			}
		}
		fmt.Fprintln(a.stdout, line.String())

		if opts.interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.interval):
			}
		}
	}
	return nil
}
