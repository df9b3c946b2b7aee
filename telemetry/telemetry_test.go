package telemetry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/w1xm/ioptron_interface/ioptron"
)

type pointRecorder struct {
	points []*write.Point
}

func (p *pointRecorder) WritePoint(point *write.Point) {
	p.points = append(p.points, point)
}

func TestFields(t *testing.T) {
	info := ioptron.Info{
		Longitude:    -71.0928,
		Latitude:     42.3601,
		GPS:          ioptron.GpsReceivingValidData,
		Status:       ioptron.Parked,
		TrackingRate: ioptron.Lunar,
		Parked:       true,
	}
	pos := ioptron.Position{RA: 150, Dec: -10, PierSide: ioptron.PierWest}
	want := map[string]interface{}{
		"status":           "Parked",
		"gps":              info.GPS.String(),
		"tracking_rate":    "Lunar",
		"time_source":      info.TimeSource.String(),
		"hemisphere":       info.Hemisphere.String(),
		"parked":           true,
		"longitude":        -71.0928,
		"latitude":         42.3601,
		"ra":               150.0,
		"dec":              -10.0,
		"pier_side":        "West",
		"counterweight_up": false,
	}
	if diff := cmp.Diff(want, Fields(info, pos)); diff != "" {
		t.Errorf("unexpected fields: got(+)/want(-):\n%s", diff)
	}
}

func TestRecord(t *testing.T) {
	w := &pointRecorder{}
	r := NewRecorder(w, ioptron.ModelCEM120)
	r.Record(ioptron.Info{}, ioptron.Position{}, time.Unix(0, 0))
	r.Record(ioptron.Info{}, ioptron.Position{}, time.Unix(1, 0))
	if len(w.points) != 2 {
		t.Fatalf("points written = %d, want 2", len(w.points))
	}
	if got := w.points[1].Time(); !got.Equal(time.Unix(1, 0)) {
		t.Errorf("point time = %v", got)
	}
	if got := w.points[0].Name(); got != measurement {
		t.Errorf("point name = %q, want %q", got, measurement)
	}
}
