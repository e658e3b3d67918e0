// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

// Package gatt drives the BlueZ gatttool utility to obtain readings from a
// sensor. Two transports are available: "direct" runs one gatttool process
// per read, "session" keeps an interactive gatttool running and talks to it.
package gatt

import (
	"context"
	"sort"

	"github.com/geoffholden/mitemp/data"
	"github.com/google/shlex"
	"github.com/pkg/errors"
)

var (
	ErrTransport  = errors.New("gatttool failed")
	ErrTimeout    = errors.New("timed out waiting for gatttool")
	ErrUnexpected = errors.New("unexpected gatttool output")
	ErrClosed     = errors.New("gatttool session closed")
)

// Transport obtains one fresh reading from a device.
type Transport interface {
	Acquire(ctx context.Context) (data.Reading, error)
	Close() error
}

type Opener func(cfg data.DeviceConfig) (Transport, error)

var transports map[string]Opener

func RegisterTransport(name string, open Opener) {
	if nil == transports {
		transports = make(map[string]Opener)
	}
	transports[name] = open
}

func Transports() []string {
	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the transport named in the configuration.
func Open(cfg data.DeviceConfig) (Transport, error) {
	open, ok := transports[cfg.Transport]
	if !ok {
		return nil, errors.Errorf("unknown transport %q", cfg.Transport)
	}
	return open(cfg)
}

// command splits the configured gatttool command with shell quoting rules,
// so "sudo gatttool" runs gatttool through sudo.
func command(cfg data.DeviceConfig) (string, []string, error) {
	parts, err := shlex.Split(cfg.Command)
	if err != nil {
		return "", nil, errors.Wrapf(err, "command %q", cfg.Command)
	}
	if len(parts) == 0 {
		return "", nil, errors.Errorf("empty command")
	}
	return parts[0], parts[1:], nil
}
