package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dittyapp/ditty/pkg/audioio"
	"github.com/dittyapp/ditty/pkg/capture"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices and backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}

		out := cmd.OutOrStdout()
		if devicesJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tHOST API\tCHANNELS\tRATE")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.0f\n", d.Index, d.Name, d.HostAPI, d.Channels, d.SampleRate)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nbackends: %v (auto selects %s)\n",
			audioio.AvailableBackends(), audioio.ResolveBackend(audioio.BackendAuto))
		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "print JSON")
}
