// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package units

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/pkg/errors"
)

// floatEquals compares with a relative tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= math.Max(math.Abs(a), math.Abs(b))*1e-5
}

func TestTemperatureCelsius(t *testing.T) {
	if err := quick.Check(func(x float64) bool {
		return floatEquals(x, Temperature(x).Celsius())
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestTemperatureFahrenheit(t *testing.T) {
	if err := quick.Check(func(x float64) bool {
		y := NewTemperatureFahrenheit(x)
		return floatEquals(x, y.Fahrenheit())
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestTemperatureKelvin(t *testing.T) {
	if err := quick.Check(func(x float64) bool {
		y := NewTemperatureKelvin(x)
		return floatEquals(x, y.Kelvin())
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestTemperatureGet(t *testing.T) {
	temp := Temperature(23.56)

	tests := []struct {
		unit   string
		value  float64
		symbol string
	}{
		{"", 23.56, "°C"},
		{"C", 23.56, "°C"},
		{"fahrenheit", 74.408, "°F"},
		{"K", 296.71, "K"},
	}
	for _, tt := range tests {
		value, err := temp.Get(tt.unit)
		if err != nil {
			t.Fatal(err)
		}
		if !floatEquals(value, tt.value) {
			t.Errorf("Get(%q) = %f, want %f", tt.unit, value, tt.value)
		}
		symbol, err := Symbol(tt.unit)
		if err != nil || symbol != tt.symbol {
			t.Errorf("Symbol(%q) = %q, want %q", tt.unit, symbol, tt.symbol)
		}
	}

	if _, err := temp.Get("M"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatal("Invalid unit should give an error")
	}
	if _, err := Symbol("M"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatal("Invalid unit should give an error")
	}
}
