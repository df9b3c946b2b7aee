// Package observability exports mount traffic and status as Prometheus
// metrics.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/w1xm/ioptron_interface/ioptron"
)

// Collector implements ioptron.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	MountStatus *prometheus.GaugeVec
	GPSValid    prometheus.Gauge
	Tracking    prometheus.Gauge
}

var _ ioptron.Observer = (*Collector)(nil)

var mountStatuses = []ioptron.MountStatus{
	ioptron.Stopped,
	ioptron.Tracking,
	ioptron.Slewing,
	ioptron.Flipping,
	ioptron.PecTracking,
	ioptron.Parked,
	ioptron.Homed,
}

// NewCollector registers the mount metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ioptron_commands_total",
		Help: "Commands sent to the mount, labeled by opcode and result.",
	}, []string{"command", "result"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ioptron_command_duration_seconds",
		Help:    "Round trip time of mount commands in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"command"}))
	if err != nil {
		return nil, err
	}
	status, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ioptron_mount_status",
		Help: "1 for the mount's current status, 0 for the others.",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	gps, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ioptron_gps_valid",
		Help: "1 when the mount reports a valid GPS fix.",
	}))
	if err != nil {
		return nil, err
	}
	tracking, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ioptron_tracking",
		Help: "1 when the mount is tracking.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Commands:        commands,
		CommandDuration: durations,
		MountStatus:     status,
		GPSValid:        gps,
		Tracking:        tracking,
	}, nil
}

// Result classifies a command error for the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ioptron.ErrTimeout):
		return "timeout"
	case errors.Is(err, ioptron.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ioptron.ErrTransport):
		return "transport"
	}
	return "error"
}

func (c *Collector) ObserveCommand(op string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(op, Result(err)).Inc()
	c.CommandDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveStatus(info ioptron.Info) {
	if c == nil {
		return
	}
	for _, s := range mountStatuses {
		c.MountStatus.WithLabelValues(s.String()).Set(boolToFloat(info.Status == s))
	}
	c.GPSValid.Set(boolToFloat(info.GPS == ioptron.GpsReceivingValidData))
	c.Tracking.Set(boolToFloat(info.Status.IsTracking()))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// register adds c to reg. If an equal collector is already registered, that
// one is returned instead so repeated NewCollector calls share metrics.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("collector %T already registered as %T", c, are.ExistingCollector)
	}
	return existing, nil
}
