// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

// Package device ties a configured sensor to its transport and keeps the
// latest reading for the host to expose.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/gatt"
	jww "github.com/spf13/jwalterweatherman"
)

// Device is one configured sensor. Updates are serialized with each other
// and with Close; the exposed values only change when an acquisition
// succeeds and can be read while one is in flight.
type Device struct {
	cfg       data.DeviceConfig
	transport gatt.Transport
	validity  time.Duration
	now       func() time.Time
	sensors   []*Sensor

	// held for a whole acquisition
	busy sync.Mutex

	mu       sync.RWMutex
	reading  data.Reading
	lastRead time.Time
}

// Open starts the configured transport for cfg.
func Open(cfg data.DeviceConfig) (*Device, error) {
	transport, err := gatt.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, transport), nil
}

// New wraps an already opened transport. Readings are cached for the
// configured validity only on the session transport; the direct transport
// reads on every update.
func New(cfg data.DeviceConfig, transport gatt.Transport) *Device {
	d := &Device{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
	}
	if cfg.Transport == data.TransportSession {
		d.validity = cfg.CacheDuration()
	}
	for _, key := range cfg.Monitored {
		if desc, ok := data.DescriptorFor(key); ok {
			d.sensors = append(d.sensors, &Sensor{device: d, desc: desc})
		}
	}
	return d
}

func (d *Device) Config() data.DeviceConfig {
	return d.cfg
}

// Update refreshes the reading when it is due. It reports whether an
// acquisition was attempted. An error leaves the previous reading in place;
// the attempt still counts, so the next one waits a full cache interval.
func (d *Device) Update(ctx context.Context) (bool, error) {
	d.busy.Lock()
	defer d.busy.Unlock()

	d.mu.Lock()
	now := d.now()
	if d.validity > 0 && !d.lastRead.IsZero() && now.Sub(d.lastRead) <= d.validity {
		jww.DEBUG.Printf("%s: using cached reading from %s", d.cfg.MAC, d.lastRead.Format(time.RFC3339))
		d.mu.Unlock()
		return false, nil
	}
	d.lastRead = now
	d.mu.Unlock()

	reading, err := d.transport.Acquire(ctx)
	if err != nil {
		return true, err
	}

	d.mu.Lock()
	d.reading = reading
	d.mu.Unlock()
	jww.INFO.Printf("%s: temperature %.2f humidity %.0f", d.cfg.MAC, reading.Data[data.KeyTemperature], reading.Data[data.KeyHumidity])
	return true, nil
}

// Reading returns the last successful reading, which may be empty.
func (d *Device) Reading() data.Reading {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reading
}

// LastRead is the time of the last acquisition attempt.
func (d *Device) LastRead() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastRead
}

// Value returns the latest value for key, or 0 if it was never read.
func (d *Device) Value(key string) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reading.Data[key]
}

func (d *Device) Sensors() []*Sensor {
	return d.sensors
}

// Close releases the transport once any acquisition in flight has
// finished. Cancel the context passed to Update to end it early.
func (d *Device) Close() error {
	d.busy.Lock()
	defer d.busy.Unlock()
	return d.transport.Close()
}
