// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package units

import (
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownUnit = errors.New("unknown unit")

// Temperature is a temperature in degrees Celsius, the unit the sensor
// reports in.
type Temperature float64

func NewTemperatureFahrenheit(value float64) Temperature {
	return Temperature((value - 32) / 1.8)
}

func NewTemperatureKelvin(value float64) Temperature {
	return Temperature(value - 273.15)
}

func (t Temperature) Celsius() float64 {
	return float64(t)
}

func (t Temperature) Fahrenheit() float64 {
	return float64(t)*1.8 + 32
}

func (t Temperature) Kelvin() float64 {
	return float64(t) + 273.15
}

// Get converts to the named unit ("C", "celsius", "F", ...).
func (t Temperature) Get(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "c", "celsius":
		return t.Celsius(), nil
	case "f", "fahrenheit":
		return t.Fahrenheit(), nil
	case "k", "kelvin":
		return t.Kelvin(), nil
	}
	return 0, errors.Wrapf(ErrUnknownUnit, "%q", unit)
}

// Symbol is the display symbol of the named unit.
func Symbol(unit string) (string, error) {
	switch strings.ToLower(unit) {
	case "", "c", "celsius":
		return "°C", nil
	case "f", "fahrenheit":
		return "°F", nil
	case "k", "kelvin":
		return "K", nil
	}
	return "", errors.Wrapf(ErrUnknownUnit, "%q", unit)
}
