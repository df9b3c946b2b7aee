// Package telemetry writes mount status samples to InfluxDB.
package telemetry

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/w1xm/ioptron_interface/ioptron"
)

const measurement = "mount.status"

// PointWriter is satisfied by the non-blocking api.WriteApi.
type PointWriter interface {
	WritePoint(point *write.Point)
}

type Recorder struct {
	w    PointWriter
	tags map[string]string
}

// NewRecorder tags every point with the mount model.
func NewRecorder(w PointWriter, model ioptron.Model) *Recorder {
	return &Recorder{
		w:    w,
		tags: map[string]string{"model": model.String()},
	}
}

// Record queues one sample.
func (r *Recorder) Record(info ioptron.Info, pos ioptron.Position, ts time.Time) {
	r.w.WritePoint(influxdb2.NewPoint(measurement, r.tags, Fields(info, pos), ts))
}

// Fields flattens a status and position sample into Influx fields.
func Fields(info ioptron.Info, pos ioptron.Position) map[string]interface{} {
	return map[string]interface{}{
		"status":           info.Status.String(),
		"gps":              info.GPS.String(),
		"tracking_rate":    info.TrackingRate.String(),
		"time_source":      info.TimeSource.String(),
		"hemisphere":       info.Hemisphere.String(),
		"parked":           info.Parked,
		"longitude":        info.Longitude,
		"latitude":         info.Latitude,
		"ra":               pos.RA,
		"dec":              pos.Dec,
		"pier_side":        pos.PierSide.String(),
		"counterweight_up": pos.CounterweightUp,
	}
}
