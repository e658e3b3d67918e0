// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package data

import (
	"fmt"
	"time"
)

const (
	KeyTemperature = "temperature"
	KeyHumidity    = "humidity"
)

// Reading is the result of one successful acquisition. Data always holds
// both KeyTemperature and KeyHumidity; a read that cannot produce both is
// reported as an error instead.
type Reading struct {
	TimeStamp time.Time
	ID        string
	Data      map[string]float64
}

// Empty reports whether the reading has never been populated.
func (r Reading) Empty() bool {
	return len(r.Data) == 0
}

type Kind int

const (
	Float Kind = iota
	Integer
)

// Descriptor is the static definition of one measurement kind.
type Descriptor struct {
	Key         string
	Name        string
	Unit        string
	DeviceClass string
	Kind        Kind
}

var Descriptors = []Descriptor{
	{Key: KeyTemperature, Name: "Temperature", Unit: "°C", DeviceClass: "temperature", Kind: Float},
	{Key: KeyHumidity, Name: "Humidity", Unit: "%", DeviceClass: "humidity", Kind: Integer},
}

func DescriptorFor(key string) (Descriptor, bool) {
	for _, d := range Descriptors {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Keys returns every known sensor key in declaration order.
func Keys() []string {
	keys := make([]string, len(Descriptors))
	for i, d := range Descriptors {
		keys[i] = d.Key
	}
	return keys
}

// Format renders a value the way the descriptor's kind expects it.
func (d Descriptor) Format(value float64) string {
	if d.Kind == Integer {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.2f", value)
}
