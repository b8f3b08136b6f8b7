package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hipsterbrown/dynamixel-joints/config"
	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
	"golang.org/x/sync/errgroup"
)

// channel is one opened bus of the layout.
type channel struct {
	name string
	bus  *dynamixel.Bus
}

// rig holds every bus of a layout, in file order.
type rig struct {
	channels []*channel
	logger   *slog.Logger
}

// openRig opens all channels of cfg. If any fails, the ones already open
// are closed again.
func (a *app) openRig(cfg *config.Config) (*rig, error) {
	r := &rig{logger: a.logger}
	for i := range cfg.Channels {
		cc := &cfg.Channels[i]

		bc := cc.BusConfig()
		bc.Opener = a.opener
		bc.Logger = a.logger.With("channel", cc.Name)

		bus, err := cc.Open(bc)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.channels = append(r.channels, &channel{name: cc.Name, bus: bus})
		a.logger.Info("channel ready", "channel", cc.Name, "port", cc.Port, "actuators", bus.Count())
	}
	return r, nil
}

// each runs fn for every channel concurrently. The first error cancels the
// others' context and is returned once all have finished.
func (r *rig) each(ctx context.Context, fn func(ctx context.Context, ch *channel) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range r.channels {
		g.Go(func() error {
			if err := fn(ctx, ch); err != nil {
				return fmt.Errorf("channel %s: %w", ch.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close closes every bus and returns their errors joined.
func (r *rig) Close() error {
	var errs []error
	for _, ch := range r.channels {
		if err := ch.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.name, err))
		}
	}
	return errors.Join(errs...)
}
