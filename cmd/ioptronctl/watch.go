package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/w1xm/ioptron_interface/internal/observability"
	"github.com/w1xm/ioptron_interface/ioptron"
	"github.com/w1xm/ioptron_interface/mount"
	"github.com/w1xm/ioptron_interface/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	watchInterval time.Duration
	metricsAddr   string
	influxURL     string
	influxOrg     string
	influxBucket  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the mount, reconnecting as needed, and export its status",
	Long: `watch polls the general status and position every --interval.

With --metrics-addr it serves Prometheus metrics on /metrics and the latest
sample as JSON on /api/status, or as a stream of samples on the
/api/status/ws websocket. With --influx-url every sample is written to
InfluxDB; the token is read from INFLUX_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Polling interval")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics and /api/status on")
	watchCmd.Flags().StringVar(&influxURL, "influx-url", "", "InfluxDB server URL")
	watchCmd.Flags().StringVar(&influxOrg, "influx-org", "w1xm", "InfluxDB organization")
	watchCmd.Flags().StringVar(&influxBucket, "influx-bucket", "mount.raw", "InfluxDB bucket")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	server := NewServer()

	var writeApi api.WriteApi
	if influxURL != "" {
		client := influxdb2.NewClient(influxURL, os.Getenv("INFLUX_TOKEN"))
		defer client.Close()
		// Get non-blocking write client
		writeApi = client.WriteApi(influxOrg, influxBucket)
		defer writeApi.Close()
		go func() {
			for err := range writeApi.Errors() {
				logger.Warn("influx write", zap.Error(err))
			}
		}()
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return reconnectLoop(ctx, collector, server, writeApi)
	})
	if metricsAddr != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", collector.Handler())
		r.HandleFunc("/api/status", server.StatusHandler)
		r.HandleFunc("/api/status/ws", server.StatusSocketHandler)
		srv := &http.Server{
			Handler:      r,
			Addr:         metricsAddr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			server.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reconnectLoop keeps a session open and polls it until ctx is done.
func reconnectLoop(ctx context.Context, collector *observability.Collector, server *Server, writeApi api.WriteApi) error {
	for {
		if err := watchOnce(ctx, collector, server, writeApi); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("watching mount", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

// watchOnce polls one session. Anything started for the session, such as a
// simulator, is stopped when it returns.
func watchOnce(ctx context.Context, collector *observability.Collector, server *Server, writeApi api.WriteApi) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m, err := openMount(ctx, collector)
	if err != nil {
		return err
	}
	defer func() {
		server.setConnected(false, m.Model())
		if err := m.Disconnect(); err != nil {
			logger.Warn("disconnecting", zap.Error(err))
		}
	}()
	logger.Info("watching", zap.Stringer("model", m.Model()))
	server.setConnected(true, m.Model())

	var recorder *telemetry.Recorder
	if writeApi != nil {
		recorder = telemetry.NewRecorder(writeApi, m.Model())
		defer writeApi.Flush()
	}
	return mount.Poll(ctx, m, watchInterval, func(info ioptron.Info, pos ioptron.Position) {
		server.statusCallback(info, pos)
		if recorder != nil {
			recorder.Record(info, pos, time.Now())
		}
	})
}
