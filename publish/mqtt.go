// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

// Package publish exposes device readings to the home automation host over
// MQTT, using the Home Assistant discovery convention.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/device"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Client is the part of the MQTT client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
}

type Publisher struct {
	client    Client
	topic     string
	discovery string
}

// NewPublisher publishes states below topic and discovery documents below
// discovery. An empty discovery prefix disables discovery.
func NewPublisher(client Client, topic string, discovery string) *Publisher {
	return &Publisher{client: client, topic: topic, discovery: discovery}
}

type discoveryDevice struct {
	Identifiers  []string    `json:"identifiers"`
	Connections  [][2]string `json:"connections"`
	Name         string      `json:"name"`
	Manufacturer string      `json:"manufacturer"`
	Model        string      `json:"model"`
}

type discoveryConfig struct {
	Name        string          `json:"name"`
	UniqueID    string          `json:"unique_id"`
	StateTopic  string          `json:"state_topic"`
	Unit        string          `json:"unit_of_measurement"`
	DeviceClass string          `json:"device_class"`
	StateClass  string          `json:"state_class"`
	Device      discoveryDevice `json:"device"`
}

func (p *Publisher) StateTopic(cfg data.DeviceConfig, key string) string {
	return fmt.Sprintf("%s/%s/%s", p.topic, cfg.NodeID(), key)
}

func (p *Publisher) SampleTopic() string {
	return p.topic + "/sample"
}

func (p *Publisher) DiscoveryTopic(cfg data.DeviceConfig, key string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.discovery, cfg.NodeID(), key)
}

// Announce publishes a retained discovery document for every sensor of d.
func (p *Publisher) Announce(d *device.Device) error {
	if p.discovery == "" {
		return nil
	}
	cfg := d.Config()
	dev := discoveryDevice{
		Identifiers:  []string{cfg.NodeID()},
		Connections:  [][2]string{{"mac", cfg.MAC}},
		Name:         cfg.Name,
		Manufacturer: "Xiaomi",
		Model:        "LYWSD03MMC",
	}
	for _, s := range d.Sensors() {
		doc := discoveryConfig{
			Name:        s.Name(),
			UniqueID:    cfg.NodeID() + "_" + s.Key(),
			StateTopic:  p.StateTopic(cfg, s.Key()),
			Unit:        s.Unit(),
			DeviceClass: s.Descriptor().DeviceClass,
			StateClass:  "measurement",
			Device:      dev,
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := p.send(p.DiscoveryTopic(cfg, s.Key()), true, payload); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends the current state of every sensor of d, and the whole
// reading once one exists.
func (p *Publisher) Publish(d *device.Device) error {
	cfg := d.Config()
	for _, s := range d.Sensors() {
		if err := p.send(p.StateTopic(cfg, s.Key()), true, []byte(s.State())); err != nil {
			return err
		}
	}

	reading := d.Reading()
	if reading.Empty() {
		return nil
	}
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return p.send(p.SampleTopic(), false, payload)
}

func (p *Publisher) send(topic string, retained bool, payload []byte) error {
	if token := p.client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "publish %s", topic)
	}
	jww.DEBUG.Printf("Publishing %s -> %s", topic, payload)
	return nil
}

// ClientOptions returns the options for a broker connection. Reconnection
// is left to Connect.
func ClientOptions(broker string, clientID string) *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetCleanSession(true)
	opts.AutoReconnect = false
	opts.OnConnectionLost = func(c MQTT.Client, e error) {
		jww.ERROR.Println("MQTT Connection Lost", e)
		Connect(context.Background(), c)
	}
	return opts
}

// Connect connects client, backing off from one second up to five minutes
// between attempts, until it succeeds or ctx is done.
func Connect(ctx context.Context, client MQTT.Client) error {
	timeout := 1 * time.Second

	for {
		token := client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		jww.ERROR.Println(token.Error())
		jww.ERROR.Printf("Waiting %d seconds before reconnecting...", timeout/time.Second)
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
			return ctx.Err()
		}
		timeout *= 2
		if timeout > 5*time.Minute {
			timeout = 5 * time.Minute
		}
	}
}
