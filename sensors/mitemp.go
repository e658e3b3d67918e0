// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package sensors

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/pkg/errors"
)

var ErrMalformed = errors.New("malformed sensor response")

// ParseResponse decodes the output of a gatttool characteristic read, a line
// of the form "Characteristic value/descriptor: 34 09 38".
func ParseResponse(id string, input string) (data.Reading, error) {
	str := strings.Split(strings.TrimSpace(input), ":")
	if len(str) != 2 {
		return data.Reading{}, errors.Wrapf(ErrMalformed, "expected one label, got %q", input)
	}
	return ParsePayload(id, str[1])
}

// ParsePayload decodes whitespace separated hex bytes. The first two bytes
// are the temperature in hundredths of a degree, little endian; the third is
// the relative humidity. Any further bytes are ignored.
func ParsePayload(id string, input string) (data.Reading, error) {
	fields := strings.Fields(input)
	if len(fields) < 3 {
		return data.Reading{}, errors.Wrapf(ErrMalformed, "expected 3 bytes, got %d", len(fields))
	}

	message := make([]byte, 3)
	for i := range message {
		v, err := strconv.ParseUint(fields[i], 16, 8)
		if err != nil {
			return data.Reading{}, errors.Wrapf(ErrMalformed, "byte %d: %q", i, fields[i])
		}
		message[i] = byte(v)
	}

	result := data.Reading{
		TimeStamp: time.Now().UTC(),
		ID:        id,
		Data:      make(map[string]float64),
	}
	result.Data[data.KeyTemperature] = float64(binary.LittleEndian.Uint16(message[0:2])) / 100.0
	result.Data[data.KeyHumidity] = float64(message[2])
	return result, nil
}
