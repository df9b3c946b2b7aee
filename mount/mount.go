// Package mount defines the capabilities a telescope mount driver offers.
package mount

import (
	"context"
	"time"

	"github.com/w1xm/ioptron_interface/ioptron"
)

type Mount interface {
	Status() (ioptron.Info, error)
	Position() (ioptron.Position, error)
	Abort() error
	Disconnect() error
}

type Syncer interface {
	SyncTo(ra, dec float64) error
}

type Slewer interface {
	StartSlewTo(ra, dec float64) error
	IsSlewComplete() (bool, error)
}

type Parker interface {
	Park() error
	Unpark() error
	AtPark() (bool, error)
	SetParkPosition(az, alt float64) error
	ParkPosition() (az, alt float64, err error)
}

type Homer interface {
	GotoZero() error
	FindZero() error
	GotoFlats() error
}

type Tracker interface {
	SetSiderealTracking() error
	SetTrackingOff() error
	SetTrackingRates(on, ignoreRates bool, raRate, decRate float64) error
	TrackRates() (ra, dec float64, on bool, err error)
}

type Jogger interface {
	StartOpenLoopMove(dir ioptron.Direction, rate int) error
	StopOpenLoopMove() error
}

var (
	_ Mount   = (*ioptron.Mount)(nil)
	_ Syncer  = (*ioptron.Mount)(nil)
	_ Slewer  = (*ioptron.Mount)(nil)
	_ Parker  = (*ioptron.Mount)(nil)
	_ Homer   = (*ioptron.Mount)(nil)
	_ Tracker = (*ioptron.Mount)(nil)
	_ Jogger  = (*ioptron.Mount)(nil)
)

type StatusCallback func(info ioptron.Info, pos ioptron.Position)

// Poll reads status and position every interval and reports each sample to
// cb until ctx is done or a read fails.
func Poll(ctx context.Context, m Mount, interval time.Duration, cb StatusCallback) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		info, err := m.Status()
		if err != nil {
			return err
		}
		pos, err := m.Position()
		if err != nil {
			return err
		}
		cb(info, pos)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
