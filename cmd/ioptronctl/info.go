package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/w1xm/ioptron_interface/ioptron"
	"github.com/w1xm/ioptron_interface/transport"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the mount model and firmware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			fw, err := m.Firmware()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Model:\t%v (%s)\n", m.Model(), m.Model().Code())
			fmt.Fprintf(w, "Firmware:\t%s\n", fw)
			fmt.Fprintf(w, "Refraction correction:\t%v\n", m.RefractionCorrection())
			return w.Flush()
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the general status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			info, err := m.Status()
			if err != nil {
				return err
			}
			return printStatus(cmd, info)
		})
	},
}

func printStatus(cmd *cobra.Command, info ioptron.Info) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Status:\t%v\n", info.Status)
	fmt.Fprintf(w, "GPS:\t%v\n", info.GPS)
	fmt.Fprintf(w, "Tracking rate:\t%v\n", info.TrackingRate)
	fmt.Fprintf(w, "Time source:\t%v\n", info.TimeSource)
	fmt.Fprintf(w, "Hemisphere:\t%v\n", info.Hemisphere)
	fmt.Fprintf(w, "Longitude:\t%.6f\n", info.Longitude)
	fmt.Fprintf(w, "Latitude:\t%.6f\n", info.Latitude)
	fmt.Fprintf(w, "Parked:\t%v\n", info.Parked)
	return w.Flush()
}

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Show the current RA/Dec in degrees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			p, err := m.Position()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RA %.6f Dec %.6f pier %v counterweight-up %v\n",
				p.RA, p.Dec, p.PierSide, p.CounterweightUp)
			return nil
		})
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd, statusCmd, positionCmd, portsCmd)
}
