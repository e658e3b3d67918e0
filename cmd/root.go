// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"os"
	"strings"

	"github.com/geoffholden/mitemp/data"
	"github.com/geoffholden/mitemp/device"
	"github.com/geoffholden/mitemp/gatt"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var cfgFile string
var verbose bool

// This represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "mitemp",
	Short: "Xiaomi Mijia temperature and humidity sensor bridge",
	Long: `mitemp reads Xiaomi Mijia Bluetooth LE temperature and humidity
sensors through gatttool and exposes the values to a home automation host.

Values are published over MQTT using Home Assistant discovery, and can
optionally be served over HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			jww.SetStdoutThreshold(jww.LevelTrace)
		}
	},
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		jww.ERROR.Println(err)
		os.Exit(-1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is mitemp.yaml)")
	RootCmd.PersistentFlags().String("broker", "tcp://localhost:1883", "MQTT Server")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.PersistentFlags().String("mac", "", "Sensor MAC address")
	RootCmd.PersistentFlags().String("adapter", data.DefaultAdapter, "Bluetooth adapter")
	RootCmd.PersistentFlags().String("name", data.DefaultName, "Sensor name prefix")
	RootCmd.PersistentFlags().String("transport", data.DefaultTransport, "Transport, one of ["+strings.Join(gatt.Transports(), ", ")+"]")
	RootCmd.PersistentFlags().String("command", data.DefaultCommand, "gatttool command line")
	RootCmd.PersistentFlags().Int("timeout", data.DefaultTimeout, "Timeout in seconds")
	RootCmd.PersistentFlags().Int("retries", data.DefaultRetries, "Connection retries (session transport)")
	RootCmd.PersistentFlags().Int("cache", data.DefaultCache, "Cache validity in seconds (session transport)")
	RootCmd.PersistentFlags().StringSlice("monitored_conditions", data.Keys(), "Values to expose")
	viper.BindPFlags(RootCmd.PersistentFlags())
	data.SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := godotenv.Load(); err == nil {
		jww.DEBUG.Println("Loaded .env")
	}

	if cfgFile != "" { // enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	}

	viper.SetConfigName("mitemp") // name of config file (without extension)
	viper.AddConfigPath("/etc/mitemp/")
	viper.AddConfigPath("$HOME/.mitemp/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("mitemp")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		jww.DEBUG.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// openDevices opens every configured device. On error the devices opened so
// far are closed.
func openDevices() ([]*device.Device, error) {
	configs, err := data.LoadDevices(viper.GetViper())
	if err != nil {
		return nil, err
	}
	devices := make([]*device.Device, 0, len(configs))
	for _, cfg := range configs {
		d, err := device.Open(cfg)
		if err != nil {
			closeDevices(devices)
			return nil, err
		}
		jww.DEBUG.Printf("Opened %s (%s) using the %s transport", cfg.MAC, cfg.Name, cfg.Transport)
		devices = append(devices, d)
	}
	return devices, nil
}

func closeDevices(devices []*device.Device) {
	for _, d := range devices {
		if err := d.Close(); err != nil {
			jww.ERROR.Println(err)
		}
	}
}
