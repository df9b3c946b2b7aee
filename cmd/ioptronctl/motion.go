package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/w1xm/ioptron_interface/ioptron"
	"github.com/w1xm/ioptron_interface/mount"
)

var (
	jogRate     int
	jogDuration time.Duration
	slewWait    time.Duration
)

func parseDegrees(args ...string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", a, ioptron.ErrInvalidArgument)
		}
		out[i] = v
	}
	return out, nil
}

var syncCmd = &cobra.Command{
	Use:   "sync [flags] [--] RA DEC",
	Short: "Sync the mount to RA/Dec in degrees (needs a GPS fix)",
	Long: `sync tells the mount it is pointing at RA/Dec, both in degrees.

Flags must come before the coordinates. A negative RA needs a leading --,
as in: ioptronctl sync -- -12.5 -10`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseDegrees(args...)
		if err != nil {
			return err
		}
		return withMount(cmd, func(m *ioptron.Mount) error {
			return syncTo(m, v[0], v[1])
		})
	},
}

func syncTo(s mount.Syncer, ra, dec float64) error {
	return s.SyncTo(ra, dec)
}

var slewCmd = &cobra.Command{
	Use:   "slew [flags] [--] RA DEC",
	Short: "Goto RA/Dec in degrees and wait for the slew to finish",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseDegrees(args...)
		if err != nil {
			return err
		}
		return withMount(cmd, func(m *ioptron.Mount) error {
			return slewTo(cmd, m, v[0], v[1])
		})
	},
}

func slewTo(cmd *cobra.Command, s mount.Slewer, ra, dec float64) error {
	if err := s.StartSlewTo(ra, dec); err != nil {
		return err
	}
	return waitSlew(cmd, s)
}

// waitSlew polls until the mount reports the slew done or slewWait passes.
func waitSlew(cmd *cobra.Command, s mount.Slewer) error {
	deadline := time.After(slewWait)
	for {
		done, err := s.IsSlewComplete()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-deadline:
			return fmt.Errorf("slew still running after %v", slewWait)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

var parkCmd = &cobra.Command{
	Use:   "park",
	Short: "Park the mount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			if err := m.Park(); err != nil {
				return err
			}
			return waitSlew(cmd, m)
		})
	},
}

var unparkCmd = &cobra.Command{
	Use:   "unpark",
	Short: "Unpark the mount and start sidereal tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			return m.Unpark()
		})
	},
}

var parkPosCmd = &cobra.Command{
	Use:   "parkpos [flags] [AZ ALT]",
	Short: "Show or set the park position in degrees",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("want no arguments or AZ ALT, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseDegrees(args...)
		if err != nil {
			return err
		}
		return withMount(cmd, func(m *ioptron.Mount) error {
			return parkPosition(cmd, m, v)
		})
	},
}

func parkPosition(cmd *cobra.Command, p mount.Parker, v []float64) error {
	if len(v) == 2 {
		if err := p.SetParkPosition(v[0], v[1]); err != nil {
			return err
		}
	}
	az, alt, err := p.ParkPosition()
	if err != nil {
		return err
	}
	parked, err := p.AtPark()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Az %.6f Alt %.6f parked %v\n", az, alt, parked)
	return nil
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Stop all motion and tracking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			return m.Abort()
		})
	},
}

// homeCommand builds a command that starts a Homer sequence and waits for it.
func homeCommand(use, short string, run func(mount.Homer) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(cmd, func(m *ioptron.Mount) error {
				if err := run(m); err != nil {
					return err
				}
				return waitSlew(cmd, m)
			})
		},
	}
}

var jogCmd = &cobra.Command{
	Use:       "jog DIRECTION",
	Short:     "Move north, south, east or west for --duration",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"north", "south", "east", "west"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := ioptron.ParseDirection(args[0])
		if err != nil {
			return err
		}
		return withMount(cmd, func(m *ioptron.Mount) error {
			return jog(cmd, m, dir)
		})
	},
}

func jog(cmd *cobra.Command, j mount.Jogger, dir ioptron.Direction) error {
	if err := j.StartOpenLoopMove(dir, jogRate); err != nil {
		return err
	}
	select {
	case <-cmd.Context().Done():
	case <-time.After(jogDuration):
	}
	return j.StopOpenLoopMove()
}

var trackCmd = &cobra.Command{
	Use:       "track on|off",
	Short:     "Start sidereal tracking or stop tracking",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "on" && args[0] != "off" {
			return fmt.Errorf("track %q: %w", args[0], ioptron.ErrInvalidArgument)
		}
		return withMount(cmd, func(m *ioptron.Mount) error {
			return track(m, args[0] == "on")
		})
	},
}

func track(t mount.Tracker, on bool) error {
	if on {
		return t.SetSiderealTracking()
	}
	return t.SetTrackingOff()
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the tracking rate offsets in arc-seconds per second",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(cmd, func(m *ioptron.Mount) error {
			ra, dec, on, err := m.TrackRates()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RA %.7f Dec %.7f tracking %v\n", ra, dec, on)
			return nil
		})
	},
}

func init() {
	// Coordinates such as -10 would otherwise parse as shorthand flags.
	for _, c := range []*cobra.Command{syncCmd, slewCmd, parkPosCmd} {
		c.Flags().SetInterspersed(false)
	}
	slewCmd.Flags().DurationVar(&slewWait, "wait", 5*time.Minute, "Maximum time to wait for the slew")
	parkCmd.Flags().AddFlag(slewCmd.Flags().Lookup("wait"))
	homeCmd := homeCommand("home", "Goto the zero position", mount.Homer.GotoZero)
	findHomeCmd := homeCommand("findhome", "Search for the zero position", mount.Homer.FindZero)
	flatsCmd := homeCommand("flats", "Point at the zenith for flat frames", mount.Homer.GotoFlats)
	for _, c := range []*cobra.Command{homeCmd, findHomeCmd, flatsCmd} {
		c.Flags().AddFlag(slewCmd.Flags().Lookup("wait"))
	}
	jogCmd.Flags().IntVar(&jogRate, "rate", 2, fmt.Sprintf("Rate index into %v", ioptron.OpenLoopRates()))
	jogCmd.Flags().DurationVar(&jogDuration, "duration", time.Second, "How long to move")
	rootCmd.AddCommand(syncCmd, slewCmd, parkCmd, unparkCmd, parkPosCmd, abortCmd,
		homeCmd, findHomeCmd, flatsCmd, jogCmd, trackCmd, ratesCmd)
}
