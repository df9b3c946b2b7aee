package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/w1xm/ioptron_interface/internal/logging"
	"github.com/w1xm/ioptron_interface/ioptron"
	"github.com/w1xm/ioptron_interface/ioptron/simulator"
	"github.com/w1xm/ioptron_interface/transport"
	"go.uber.org/zap"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// TCP bridge flags
	bridgeAddr string

	simulate  bool
	timeout   time.Duration
	logLevel  string
	logFormat string

	logger = zap.NewNop()

	// runningSimulators counts --simulate mounts whose Run has not returned.
	runningSimulators atomic.Int32
	// simulatorStarted is called with each new simulator.
	simulatorStarted = func(*simulator.Simulator) {}
)

var rootCmd = &cobra.Command{
	Use:   "ioptronctl",
	Short: "Control an iOptron equatorial mount",
	Long: `ioptronctl talks to iOptron CEM120, CEM60 and iEQ30 Pro mounts using the
RS-232 command language V3.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  TCP:       --addr host:port (WiFi or Ethernet serial bridge)
  Simulator: --simulate

Without --baud the port is tried at 115200 and then 9600.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logging.ConfigFromEnv()
		if cmd.Flags().Changed("log-level") || cfg.Level == "" {
			cfg.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") || cfg.Format == "" {
			cfg.Format = logFormat
		}
		var err error
		logger, err = logging.New(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only; 0 tries 115200 then 9600)")
	rootCmd.PersistentFlags().StringVar(&bridgeAddr, "addr", "", "TCP serial bridge address (host:port)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use the built-in mount simulator")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", ioptron.DefaultTimeout, "Response timeout per command")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console or json)")
}

// openTransport opens the connection selected by the flags. The baud
// argument is only used for serial ports. A simulator runs until ctx is done.
func openTransport(ctx context.Context, baud int) (ioptron.Transport, error) {
	switch {
	case simulate:
		sim, conn := simulator.New(logger.Named("sim"))
		simulatorStarted(sim)
		runningSimulators.Add(1)
		go func() {
			defer runningSimulators.Add(-1)
			if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("simulator stopped", zap.Error(err))
			}
		}()
		return transport.NewConn(conn), nil
	case bridgeAddr != "":
		return transport.Dial(ctx, bridgeAddr)
	case portName != "":
		return transport.OpenSerial(portName, baud)
	}
	return nil, errors.New("one of --port, --addr or --simulate is required")
}

// openMount connects to the mount selected by the flags.
func openMount(ctx context.Context, observer ioptron.Observer) (*ioptron.Mount, error) {
	bauds := []int{baudRate}
	if baudRate == 0 {
		bauds = []int{ioptron.ModelCEM120.BaudRate(), ioptron.ModelCEM60.BaudRate()}
	}
	cfg := ioptron.Config{
		Timeout:  timeout,
		Logger:   logger,
		Observer: observer,
	}
	var errs []error
	for _, baud := range bauds {
		t, err := openTransport(ctx, baud)
		if err != nil {
			return nil, err
		}
		m, err := ioptron.Connect(t, cfg)
		if err == nil {
			if portName != "" && !simulate && bridgeAddr == "" && m.Model().BaudRate() != baud {
				logger.Warn("unexpected baud rate for model",
					zap.Stringer("model", m.Model()), zap.Int("baud", baud))
			}
			return m, nil
		}
		t.Close()
		errs = append(errs, fmt.Errorf("baud %d: %w", baud, err))
		if portName == "" || simulate || bridgeAddr != "" {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// withMount runs fn against a connected mount and disconnects afterwards.
func withMount(cmd *cobra.Command, fn func(m *ioptron.Mount) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	m, err := openMount(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Disconnect(); err != nil {
			logger.Warn("disconnecting", zap.Error(err))
		}
	}()
	return fn(m)
}
