// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package device

import "github.com/geoffholden/mitemp/data"

// Sensor exposes one monitored value of a device.
type Sensor struct {
	device *Device
	desc   data.Descriptor
}

func (s *Sensor) Key() string {
	return s.desc.Key
}

func (s *Sensor) Name() string {
	return s.device.cfg.SensorName(s.desc.Key)
}

func (s *Sensor) Unit() string {
	return s.desc.Unit
}

func (s *Sensor) Descriptor() data.Descriptor {
	return s.desc
}

func (s *Sensor) Device() *Device {
	return s.device
}

// Value is the latest reading, 0 until the first successful update.
func (s *Sensor) Value() float64 {
	return s.device.Value(s.desc.Key)
}

// State is Value formatted for publishing.
func (s *Sensor) State() string {
	return s.desc.Format(s.Value())
}
