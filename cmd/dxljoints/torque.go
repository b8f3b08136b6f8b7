package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hipsterbrown/dynamixel-joints/config"
)

func (a *app) torque(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return usageError{errors.New("usage: torque on|off")}
	}

	var enable bool
	switch args[0] {
	case "on":
		enable = true
	case "off":
	default:
		return usageError{fmt.Errorf("torque: want on or off, got %q", args[0])}
	}

	r, err := a.openRig(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.each(ctx, func(ctx context.Context, ch *channel) error {
		if enable {
			return ch.bus.EnableTorques(ctx)
		}
		return ch.bus.DisableTorques(ctx)
	})
}
