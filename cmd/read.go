// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/geoffholden/mitemp/device"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var readJSON bool

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read the sensors once",
	Long:  `Reads every configured sensor once and prints the values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := openDevices()
		if err != nil {
			return err
		}
		defer closeDevices(devices)
		return readOnce(context.Background(), devices, os.Stdout, readJSON)
	},
}

func init() {
	RootCmd.AddCommand(readCmd)

	readCmd.Flags().BoolVar(&readJSON, "json", false, "Print the readings as JSON")
}

// readOnce updates every device and prints the result. It fails if any
// device could not be read.
func readOnce(ctx context.Context, devices []*device.Device, w io.Writer, asJSON bool) error {
	failed := 0
	encoder := json.NewEncoder(w)
	for _, d := range devices {
		if _, err := d.Update(ctx); err != nil {
			jww.ERROR.Printf("%s: %v", d.Config().MAC, err)
			failed++
			continue
		}
		if asJSON {
			if err := encoder.Encode(d.Reading()); err != nil {
				return err
			}
			continue
		}
		for _, s := range d.Sensors() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name(), s.State(), s.Unit())
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d devices could not be read", failed, len(devices))
	}
	return nil
}
