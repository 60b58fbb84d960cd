// Package passive provides a no-op light driver for dry runs. The driver logs
// the command it would send but performs no network call.
package passive

import (
	"context"
	"log/slog"
	"sync"

	"presencelight/internal/core"
)

const DriverName = "passive"

// Driver implements core.LightController with no-op behavior
type Driver struct {
	logger *slog.Logger

	mu       sync.Mutex
	commands []bool
}

// NewDriver creates a new passive driver
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		logger: logger.With("driver", DriverName),
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// SetOn logs the command and reports success
func (d *Driver) SetOn(ctx context.Context, on bool) error {
	d.mu.Lock()
	d.commands = append(d.commands, on)
	d.mu.Unlock()

	d.logger.Info("passive driver: light command", "on", on)
	return nil
}

// Commands returns the commands received so far
func (d *Driver) Commands() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]bool, len(d.commands))
	copy(out, d.commands)
	return out
}

// Ensure Driver implements core.LightController
var _ core.LightController = (*Driver)(nil)
