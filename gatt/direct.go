// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package gatt

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/sensors"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Runner runs a command to completion and returns its standard output. A
// non-zero exit status is reported as an error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func init() {
	RegisterTransport(data.TransportDirect, func(cfg data.DeviceConfig) (Transport, error) {
		return NewDirect(cfg, execRunner{})
	})
}

// Direct reads the sensor with one gatttool invocation per call.
type Direct struct {
	cfg     data.DeviceConfig
	runner  Runner
	name    string
	args    []string
	timeout time.Duration
}

func NewDirect(cfg data.DeviceConfig, runner Runner) (*Direct, error) {
	name, args, err := command(cfg)
	if err != nil {
		return nil, err
	}
	args = append(args,
		"-i", cfg.Adapter,
		"-b", cfg.MAC,
		"--char-read",
		"--handle="+cfg.Handles.Read,
		"--value="+cfg.Handles.ReadValue,
	)
	return &Direct{cfg: cfg, runner: runner, name: name, args: args, timeout: cfg.TimeoutDuration()}, nil
}

// Acquire runs gatttool once. The run is bounded by the configured timeout.
func (d *Direct) Acquire(ctx context.Context) (data.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	jww.DEBUG.Println("Running", d.name, strings.Join(d.args, " "))
	out, err := d.runner.Run(ctx, d.name, d.args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return data.Reading{}, errors.Wrapf(ErrTimeout, "%s after %s", d.name, d.timeout)
		}
		return data.Reading{}, errors.Wrapf(ErrTransport, "%s: %v", d.name, err)
	}
	return sensors.ParseResponse(d.cfg.MAC, string(out))
}

func (d *Direct) Close() error {
	return nil
}
