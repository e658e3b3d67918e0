// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/device"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type token struct {
	err error
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *token) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	messages []message
	err      error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	c.messages = append(c.messages, message{topic, retained, string(payload.([]byte))})
	return &token{c.err}
}

type fakeTransport struct {
	err error
}

func (f *fakeTransport) Acquire(ctx context.Context) (data.Reading, error) {
	if f.err != nil {
		return data.Reading{}, f.err
	}
	return data.Reading{
		TimeStamp: time.Unix(1760000000, 0),
		ID:        "A4:C1:38:00:11:22",
		Data:      map[string]float64{data.KeyTemperature: 23.56, data.KeyHumidity: 56},
	}, nil
}

func (f *fakeTransport) Close() error { return nil }

func testDevice(err error) *device.Device {
	cfg := data.DeviceConfig{
		MAC:       "A4:C1:38:00:11:22",
		Name:      "Bedroom",
		Transport: data.TransportDirect,
		Monitored: data.Keys(),
	}
	return device.New(cfg, &fakeTransport{err: err})
}

func TestAnnounce(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "mitemp", "homeassistant")
	if err := p.Announce(testDevice(nil)); err != nil {
		t.Fatal(err)
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected 2 discovery messages, got %d", len(client.messages))
	}

	msg := client.messages[0]
	if msg.topic != "homeassistant/sensor/a4c138001122/temperature/config" || !msg.retained {
		t.Errorf("unexpected discovery message %+v", msg)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(msg.payload), &doc); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"name":                "Bedroom_temperature",
		"unique_id":           "a4c138001122_temperature",
		"state_topic":         "mitemp/a4c138001122/temperature",
		"unit_of_measurement": "°C",
		"device_class":        "temperature",
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("%s = %v, want %s", k, doc[k], v)
		}
	}

	client.messages = nil
	if err := NewPublisher(client, "mitemp", "").Announce(testDevice(nil)); err != nil || len(client.messages) != 0 {
		t.Error("an empty discovery prefix should disable discovery")
	}
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "mitemp", "homeassistant")
	d := testDevice(nil)

	if err := p.Publish(d); err != nil {
		t.Fatal(err)
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected states only before the first read, got %d", len(client.messages))
	}
	if client.messages[0].payload != "0.00" || client.messages[1].payload != "0" {
		t.Error("unread sensors should publish zero", client.messages)
	}

	client.messages = nil
	d.Update(context.Background())
	if err := p.Publish(d); err != nil {
		t.Fatal(err)
	}
	if len(client.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(client.messages))
	}
	if client.messages[0].topic != "mitemp/a4c138001122/temperature" || client.messages[0].payload != "23.56" {
		t.Errorf("unexpected temperature message %+v", client.messages[0])
	}
	if client.messages[1].payload != "56" {
		t.Errorf("unexpected humidity message %+v", client.messages[1])
	}
	if client.messages[2].topic != "mitemp/sample" || client.messages[2].retained {
		t.Errorf("unexpected sample message %+v", client.messages[2])
	}

	client.err = errors.New("not connected")
	if err := p.Publish(d); err == nil {
		t.Error("publish errors should be returned")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	d := testDevice(nil)

	attempted, err := d.Update(context.Background())
	m.Observe(d, attempted, err)
	if v := testutil.ToFloat64(m.value.WithLabelValues("A4:C1:38:00:11:22", "Bedroom_temperature", "temperature")); v != 23.56 {
		t.Error("unexpected temperature gauge", v)
	}
	if v := testutil.ToFloat64(m.lastSuccess.WithLabelValues("A4:C1:38:00:11:22")); v != 1760000000 {
		t.Error("unexpected last success", v)
	}

	failing := testDevice(errors.New("exit status 1"))
	attempted, err = failing.Update(context.Background())
	m.Observe(failing, attempted, err)
	if v := testutil.ToFloat64(m.failures.WithLabelValues("A4:C1:38:00:11:22")); v != 1 {
		t.Error("unexpected failure count", v)
	}
	if v := testutil.ToFloat64(m.attempts.WithLabelValues("A4:C1:38:00:11:22")); v != 2 {
		t.Error("unexpected attempt count", v)
	}
}
