// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/geoffholden/mitemp/device"
	"github.com/geoffholden/mitemp/publish"
	"github.com/geoffholden/mitemp/web"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:     "poll",
	Aliases: []string{"run", "serve"},
	Short:   "Poll sensors and publish the values",
	Long: `Reads every configured sensor at a fixed interval and publishes the
values to the MQTT broker, announcing them with Home Assistant discovery.
With --address the current values and Prometheus metrics are also served
over HTTP.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlags(cmd.Flags())
	},
	RunE: poll,
}

func init() {
	RootCmd.AddCommand(pollCmd)

	pollCmd.Flags().Duration("interval", 5*time.Minute, "Time between updates")
	pollCmd.Flags().String("topic", "mitemp", "MQTT topic prefix")
	pollCmd.Flags().String("discovery", "homeassistant", "Home Assistant discovery prefix, empty to disable")
	pollCmd.Flags().String("client_id", "mitemp", "MQTT client id")
	pollCmd.Flags().String("address", "", "Address and port for the HTTP server, empty to disable")
	pollCmd.Flags().String("unit", "C", "Temperature unit for the HTTP server")
}

func poll(cmd *cobra.Command, args []string) error {
	devices, err := openDevices()
	if err != nil {
		return err
	}
	defer closeDevices(devices)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := publish.NewMetrics()

	if address := viper.GetString("address"); address != "" {
		listener, err := net.Listen("tcp", address)
		if err != nil {
			return err
		}
		jww.INFO.Println("Listening on", listener.Addr().String())
		server := &http.Server{
			Handler: web.NewServer(devices, viper.GetString("unit"), metrics.Handler()).Router(os.Stdout),
		}
		go func() {
			if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
				jww.ERROR.Println(err)
			}
		}()
		defer server.Close()
	}

	var publisher *publish.Publisher
	if broker := viper.GetString("broker"); broker != "" {
		client := MQTT.NewClient(publish.ClientOptions(broker, viper.GetString("client_id")))
		if err := publish.Connect(ctx, client); err != nil {
			return err
		}
		defer client.Disconnect(250)

		publisher = publish.NewPublisher(client, viper.GetString("topic"), viper.GetString("discovery"))
		for _, d := range devices {
			if err := publisher.Announce(d); err != nil {
				jww.ERROR.Println(err)
			}
		}
	}

	ticker := time.NewTicker(viper.GetDuration("interval"))
	defer ticker.Stop()
	for {
		updateAll(ctx, devices, publisher, metrics)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			jww.INFO.Println("Shutting down")
			return nil
		}
	}
}

// updateAll updates the devices one after the other. A failed update is
// logged; the previous values are still published.
func updateAll(ctx context.Context, devices []*device.Device, publisher *publish.Publisher, metrics *publish.Metrics) {
	for _, d := range devices {
		attempted, err := d.Update(ctx)
		if err != nil {
			jww.ERROR.Printf("%s: %v", d.Config().MAC, err)
		}
		metrics.Observe(d, attempted, err)
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(d); err != nil {
			jww.ERROR.Println(err)
		}
	}
}
