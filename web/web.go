// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

// Package web serves the current sensor values over HTTP.
package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/device"
	"github.com/geoffholden/mitemp/units"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	jww "github.com/spf13/jwalterweatherman"
)

type sensorData struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type deviceData struct {
	MAC       string       `json:"mac"`
	Name      string       `json:"name"`
	Transport string       `json:"transport"`
	TimeStamp *time.Time   `json:"timestamp,omitempty"`
	LastRead  *time.Time   `json:"last_read,omitempty"`
	Sensors   []sensorData `json:"sensors"`
}

// Server exposes devices and their metrics. Temperatures are converted to
// unit ("C", "F" or "K").
type Server struct {
	devices []*device.Device
	unit    string
	metrics http.Handler
}

func NewServer(devices []*device.Device, unit string, metrics http.Handler) *Server {
	return &Server{devices: devices, unit: unit, metrics: metrics}
}

// Router returns the routes, wrapped in an access log written to logs.
func (s *Server) Router(logs io.Writer) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/currentdata.json", s.currentData).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods("GET")
	}
	return handlers.LoggingHandler(logs, r)
}

func (s *Server) currentData(w http.ResponseWriter, r *http.Request) {
	symbol, err := units.Symbol(s.unit)
	if err != nil {
		jww.ERROR.Println(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := make([]deviceData, 0, len(s.devices))
	for _, d := range s.devices {
		cfg := d.Config()
		dd := deviceData{
			MAC:       cfg.MAC,
			Name:      cfg.Name,
			Transport: cfg.Transport,
			Sensors:   []sensorData{},
		}
		if reading := d.Reading(); !reading.Empty() {
			ts := reading.TimeStamp
			dd.TimeStamp = &ts
		}
		if last := d.LastRead(); !last.IsZero() {
			dd.LastRead = &last
		}
		for _, sensor := range d.Sensors() {
			sd := sensorData{
				Key:   sensor.Key(),
				Name:  sensor.Name(),
				Value: sensor.Value(),
				Unit:  sensor.Unit(),
			}
			if sd.Key == data.KeyTemperature {
				// unit was validated by Symbol above
				sd.Value, _ = units.Temperature(sd.Value).Get(s.unit)
				sd.Unit = symbol
			}
			dd.Sensors = append(dd.Sensors, sd)
		}
		result = append(result, dd)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		jww.ERROR.Println(err)
	}
}
