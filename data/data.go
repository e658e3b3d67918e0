// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package data

import (
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	TransportDirect  = "direct"
	TransportSession = "session"
)

const (
	DefaultAdapter   = "hci0"
	DefaultName      = "MiTempHumidity"
	DefaultTransport = TransportDirect
	DefaultCommand   = "gatttool"
	DefaultTimeout   = 10
	DefaultRetries   = 3
	DefaultCache     = 600
)

var ErrInvalidConfig = errors.New("invalid device configuration")

var macAddress = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// Handles are the GATT characteristic handles used to talk to the sensor.
type Handles struct {
	Read         string `mapstructure:"read" json:"read"`
	ReadValue    string `mapstructure:"read_value" json:"read_value"`
	Notify       string `mapstructure:"notify" json:"notify"`
	NotifyValue  string `mapstructure:"notify_value" json:"notify_value"`
	Notification string `mapstructure:"notification" json:"notification"`
}

// DeviceConfig is the configuration of one sensor. Timeout and Cache are in
// seconds.
type DeviceConfig struct {
	MAC       string   `mapstructure:"mac" json:"mac"`
	Adapter   string   `mapstructure:"adapter" json:"adapter"`
	Name      string   `mapstructure:"name" json:"name"`
	Transport string   `mapstructure:"transport" json:"transport"`
	Command   string   `mapstructure:"command" json:"command"`
	Timeout   int      `mapstructure:"timeout" json:"timeout"`
	Retries   int      `mapstructure:"retries" json:"retries"`
	Cache     int      `mapstructure:"cache" json:"cache"`
	Monitored []string `mapstructure:"monitored_conditions" json:"monitored_conditions"`
	Handles   Handles  `mapstructure:"handles" json:"handles"`
}

var deviceKeys = []string{
	"adapter",
	"name",
	"transport",
	"command",
	"timeout",
	"retries",
	"cache",
	"monitored_conditions",
	"handles.read",
	"handles.read_value",
	"handles.notify",
	"handles.notify_value",
	"handles.notification",
}

// SetDefaults registers the default device settings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("adapter", DefaultAdapter)
	v.SetDefault("name", DefaultName)
	v.SetDefault("transport", DefaultTransport)
	v.SetDefault("command", DefaultCommand)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("cache", DefaultCache)
	v.SetDefault("monitored_conditions", Keys())
	v.SetDefault("handles.read", "0x0033")
	v.SetDefault("handles.read_value", "0100")
	v.SetDefault("handles.notify", "0x0038")
	v.SetDefault("handles.notify_value", "0100")
	v.SetDefault("handles.notification", "0x0036")
}

// LoadDevices reads the configured devices. A "devices" list takes
// precedence; each entry inherits unset settings from the top level. Without
// a list the top level itself describes a single device.
func LoadDevices(v *viper.Viper) ([]DeviceConfig, error) {
	raw := v.Get("devices")
	if raw == nil {
		cfg, err := decodeDevice(v)
		if err != nil {
			return nil, err
		}
		return []DeviceConfig{cfg}, nil
	}

	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, "devices must be a list")
	}
	if len(items) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no devices configured")
	}

	seen := make(map[string]bool)
	devices := make([]DeviceConfig, 0, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "device %d is not a map", i)
		}
		sub := viper.New()
		for _, key := range deviceKeys {
			sub.SetDefault(key, v.Get(key))
		}
		if err := sub.MergeConfigMap(m); err != nil {
			return nil, errors.Wrapf(err, "device %d", i)
		}
		cfg, err := decodeDevice(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "device %d", i)
		}
		if seen[cfg.MAC] {
			return nil, errors.Wrapf(ErrInvalidConfig, "device %s configured twice", cfg.MAC)
		}
		seen[cfg.MAC] = true
		devices = append(devices, cfg)
	}
	return devices, nil
}

func decodeDevice(v *viper.Viper) (DeviceConfig, error) {
	var cfg DeviceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	cfg.MAC = strings.ToUpper(strings.TrimSpace(cfg.MAC))
	if len(cfg.Monitored) == 0 {
		cfg.Monitored = Keys()
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the transports cannot use.
func (c DeviceConfig) Validate() error {
	if c.MAC == "" {
		return errors.Wrap(ErrInvalidConfig, "mac is required")
	}
	if !macAddress.MatchString(c.MAC) {
		return errors.Wrapf(ErrInvalidConfig, "invalid mac %q", c.MAC)
	}
	switch c.Transport {
	case TransportDirect, TransportSession:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown transport %q", c.Transport)
	}
	if strings.TrimSpace(c.Command) == "" {
		return errors.Wrap(ErrInvalidConfig, "command is required")
	}
	if c.Timeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "timeout must be positive, got %d", c.Timeout)
	}
	if c.Retries < 0 {
		return errors.Wrapf(ErrInvalidConfig, "retries must not be negative, got %d", c.Retries)
	}
	if c.Cache < 0 {
		return errors.Wrapf(ErrInvalidConfig, "cache must not be negative, got %d", c.Cache)
	}
	seen := make(map[string]bool)
	for _, key := range c.Monitored {
		if _, ok := DescriptorFor(key); !ok {
			return errors.Wrapf(ErrInvalidConfig, "unknown monitored condition %q", key)
		}
		if seen[key] {
			return errors.Wrapf(ErrInvalidConfig, "monitored condition %q listed twice", key)
		}
		seen[key] = true
	}
	return nil
}

func (c DeviceConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c DeviceConfig) CacheDuration() time.Duration {
	return time.Duration(c.Cache) * time.Second
}

// NodeID is the MAC address without separators, suitable for topics and
// unique identifiers.
func (c DeviceConfig) NodeID() string {
	return strings.ToLower(strings.ReplaceAll(c.MAC, ":", ""))
}

// SensorName is the display name of the sensor for key.
func (c DeviceConfig) SensorName(key string) string {
	return c.Name + "_" + key
}
