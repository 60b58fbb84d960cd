// Package keylight drives an Elgato Key Light over its local HTTP API.
package keylight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"presencelight/internal/core"
)

const (
	DriverName = "keylight"

	DefaultPort    = 9123
	DefaultTimeout = 2 * time.Second
)

// Config contains the light's network settings
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// lightsRequest is the body of PUT /elgato/lights. On is 0 or 1.
type lightsRequest struct {
	Lights []lightState `json:"lights"`
}

type lightState struct {
	On int `json:"on"`
}

// Driver implements core.LightController. It keeps no memory of earlier
// commands; every call sends the full desired state.
type Driver struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDriver creates a new Key Light driver
func NewDriver(config Config, logger *slog.Logger) *Driver {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Driver{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With("driver", DriverName),
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// URL returns the light control endpoint
func (d *Driver) URL() string {
	return "http://" + net.JoinHostPort(d.config.Host, strconv.Itoa(d.config.Port)) + "/elgato/lights"
}

// SetOn sends a single state-setting command. Errors are returned as
// light-command failures and never panic.
func (d *Driver) SetOn(ctx context.Context, on bool) error {
	state := 0
	if on {
		state = 1
	}

	reqBody, err := json.Marshal(lightsRequest{Lights: []lightState{{On: state}}})
	if err != nil {
		return core.LightCommandFailure("marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, d.URL(), bytes.NewReader(reqBody))
	if err != nil {
		return core.LightCommandFailure("create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return core.LightCommandFailure("send request", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.LightCommandFailure("send request", fmt.Errorf("light returned status %d", resp.StatusCode))
	}

	d.logger.Debug("light command accepted", "on", on, "host", d.config.Host)
	return nil
}

// Ensure Driver implements core.LightController
var _ core.LightController = (*Driver)(nil)
