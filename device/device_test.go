// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package device

import (
	"context"
	"testing"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/gatt"
	"github.com/pkg/errors"
)

type fakeTransport struct {
	calls   int
	results []error
	closed  bool
}

func (f *fakeTransport) Acquire(ctx context.Context) (data.Reading, error) {
	f.calls++
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	if err != nil {
		return data.Reading{}, err
	}
	return data.Reading{
		TimeStamp: time.Now(),
		ID:        "A4:C1:38:00:11:22",
		Data: map[string]float64{
			data.KeyTemperature: 23.56 + float64(f.calls),
			data.KeyHumidity:    56,
		},
	}, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func testConfig(transport string) data.DeviceConfig {
	return data.DeviceConfig{
		MAC:       "A4:C1:38:00:11:22",
		Adapter:   "hci0",
		Name:      "Bedroom",
		Transport: transport,
		Command:   "gatttool",
		Timeout:   10,
		Retries:   3,
		Cache:     600,
		Monitored: data.Keys(),
	}
}

func newTestDevice(transport string, ft *fakeTransport) (*Device, *clock) {
	c := &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	d := New(testConfig(transport), ft)
	d.now = c.now
	return d, c
}

func TestSessionCache(t *testing.T) {
	ft := &fakeTransport{}
	d, c := newTestDevice(data.TransportSession, ft)
	ctx := context.Background()
	start := c.t

	if attempted, err := d.Update(ctx); !attempted || err != nil {
		t.Fatalf("first update should read: %v %v", attempted, err)
	}
	for _, elapsed := range []time.Duration{599 * time.Second, 600 * time.Second} {
		c.t = start.Add(elapsed)
		if attempted, _ := d.Update(ctx); attempted {
			t.Errorf("update after %s should use the cache", elapsed)
		}
	}
	if ft.calls != 1 {
		t.Errorf("expected 1 acquisition, got %d", ft.calls)
	}

	c.t = start.Add(601 * time.Second)
	if attempted, err := d.Update(ctx); !attempted || err != nil {
		t.Fatalf("update after the cache interval should read: %v %v", attempted, err)
	}
	if ft.calls != 2 {
		t.Errorf("expected 2 acquisitions, got %d", ft.calls)
	}
	if d.Value(data.KeyTemperature) != 23.56+2 {
		t.Error("value should come from the second read", d.Value(data.KeyTemperature))
	}
}

func TestSessionFailureKeepsCache(t *testing.T) {
	ft := &fakeTransport{}
	d, c := newTestDevice(data.TransportSession, ft)
	ctx := context.Background()

	d.Update(ctx)
	before := d.Reading()

	ft.results = []error{errors.Wrap(gatt.ErrTimeout, "connect")}
	c.t = c.t.Add(10*time.Minute + time.Second)
	attempted, err := d.Update(ctx)
	if !attempted || !errors.Is(err, gatt.ErrTimeout) {
		t.Fatalf("expected a failed attempt, got %v %v", attempted, err)
	}
	if d.Value(data.KeyTemperature) != before.Data[data.KeyTemperature] {
		t.Error("a failed read should keep the cached reading")
	}
	if !d.LastRead().Equal(c.t) {
		t.Error("a failed read should still advance the last read time")
	}

	c.t = c.t.Add(time.Minute)
	if attempted, _ := d.Update(ctx); attempted {
		t.Error("a failed read should not be retried before the cache interval")
	}
	if ft.calls != 2 {
		t.Errorf("expected 2 acquisitions, got %d", ft.calls)
	}
}

func TestSessionFirstFailureWaits(t *testing.T) {
	ft := &fakeTransport{results: []error{gatt.ErrTimeout}}
	d, c := newTestDevice(data.TransportSession, ft)

	d.Update(context.Background())
	c.t = c.t.Add(time.Second)
	d.Update(context.Background())
	if ft.calls != 1 {
		t.Errorf("expected 1 acquisition, got %d", ft.calls)
	}
	if !d.Reading().Empty() {
		t.Error("reading should still be empty")
	}
}

func TestDirectReadsEveryUpdate(t *testing.T) {
	ft := &fakeTransport{}
	d, _ := newTestDevice(data.TransportDirect, ft)
	ctx := context.Background()

	d.Update(ctx)
	d.Update(ctx)
	if ft.calls != 2 {
		t.Errorf("direct transport should not cache, got %d acquisitions", ft.calls)
	}

	ft.results = []error{gatt.ErrTransport}
	value := d.Value(data.KeyTemperature)
	if _, err := d.Update(ctx); !errors.Is(err, gatt.ErrTransport) {
		t.Error("expected transport error, got", err)
	}
	if d.Value(data.KeyTemperature) != value {
		t.Error("a failed read should leave the value unchanged")
	}
}

func TestSensors(t *testing.T) {
	ft := &fakeTransport{results: []error{gatt.ErrTransport}}
	d, _ := newTestDevice(data.TransportDirect, ft)

	sensors := d.Sensors()
	if len(sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(sensors))
	}
	for _, s := range sensors {
		if s.Value() != 0 {
			t.Errorf("%s should be 0 before the first read", s.Name())
		}
	}

	d.Update(context.Background())
	if sensors[0].Value() != 0 {
		t.Error("a failed first read should leave 0")
	}

	d.Update(context.Background())
	temp, hum := sensors[0], sensors[1]
	if temp.Name() != "Bedroom_temperature" || temp.Unit() != "°C" {
		t.Errorf("unexpected temperature sensor %s %s", temp.Name(), temp.Unit())
	}
	if temp.State() != "25.56" {
		t.Error("unexpected temperature state", temp.State())
	}
	if hum.Name() != "Bedroom_humidity" || hum.Unit() != "%" || hum.State() != "56" {
		t.Errorf("unexpected humidity sensor %s %s %s", hum.Name(), hum.Unit(), hum.State())
	}

	d.Close()
	if !ft.closed {
		t.Error("Close should release the transport")
	}
}

func TestMonitoredSubset(t *testing.T) {
	cfg := testConfig(data.TransportDirect)
	cfg.Monitored = []string{data.KeyHumidity}
	d := New(cfg, &fakeTransport{})
	if len(d.Sensors()) != 1 || d.Sensors()[0].Key() != data.KeyHumidity {
		t.Error("only humidity should be exposed")
	}
}

type blockingTransport struct {
	started chan struct{}
	release chan struct{}
	closed  chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (b *blockingTransport) Acquire(ctx context.Context) (data.Reading, error) {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
		return data.Reading{}, ctx.Err()
	}
	return data.Reading{
		TimeStamp: time.Now(),
		ID:        "A4:C1:38:00:11:22",
		Data:      map[string]float64{data.KeyTemperature: 21.5, data.KeyHumidity: 40},
	}, nil
}

func (b *blockingTransport) Close() error {
	close(b.closed)
	return nil
}

func TestValuesReadableDuringAcquisition(t *testing.T) {
	bt := newBlockingTransport()
	d := New(testConfig(data.TransportSession), bt)

	done := make(chan struct{})
	go func() {
		d.Update(context.Background())
		close(done)
	}()
	<-bt.started

	values := make(chan float64)
	go func() {
		values <- d.Sensors()[0].Value()
		d.Reading()
		d.LastRead()
	}()
	select {
	case v := <-values:
		if v != 0 {
			t.Error("value should be unchanged while reading", v)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Value blocked while an acquisition was in flight")
	}
	if d.LastRead().IsZero() {
		t.Error("the attempt should be recorded when it starts")
	}

	close(bt.release)
	<-done
	if d.Value(data.KeyTemperature) != 21.5 {
		t.Error("value should be stored after the acquisition", d.Value(data.KeyTemperature))
	}
}

func TestCloseWaitsForAcquisition(t *testing.T) {
	bt := newBlockingTransport()
	d := New(testConfig(data.TransportDirect), bt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := d.Update(ctx)
		done <- err
	}()
	<-bt.started

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-bt.closed:
		t.Fatal("Close should wait for the acquisition in flight")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Error("expected cancellation, got", err)
	}
	<-closed
	select {
	case <-bt.closed:
	default:
		t.Error("transport should be closed")
	}
}
