package ioptron

import (
	"errors"
	"fmt"
	"math"

	"github.com/w1xm/ioptron_interface/ioptron/internal/status"
	"go.uber.org/zap"
)

// SyncTo tells the mount it is pointing at ra/dec (degrees). It requires a
// valid GPS fix. A failure part way leaves earlier fields set on the mount.
func (m *Mount) SyncTo(ra, dec float64) error {
	if err := checkRaDec(ra, dec); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	if err := m.refresh(); err != nil {
		return err
	}
	if m.info.GPS != GpsReceivingValidData {
		return fmt.Errorf("sync: gps %v: %w", m.info.GPS, ErrPreconditionFailed)
	}
	for _, cmd := range []string{
		setRACommand(ra),
		setDecCommand(dec),
		cmdSyncCommit,
	} {
		if _, err := m.execute(cmd, acknowledgeLength); err != nil {
			return err
		}
	}
	m.coords.reset()
	return nil
}

// checkRaDec rejects coordinates the set commands cannot encode. Negative RA
// is sent as is; dec must be in [-90, 90] so the biased value stays unsigned.
func checkRaDec(ra, dec float64) error {
	if math.IsNaN(ra) || math.Abs(ra) >= 360 {
		return fmt.Errorf("ra %v outside (-360, 360): %w", ra, ErrInvalidArgument)
	}
	if !(dec >= -90 && dec <= 90) {
		return fmt.Errorf("dec %v outside [-90, 90]: %w", dec, ErrInvalidArgument)
	}
	return nil
}

// StartSlewTo validates a goto request. The command sequence that starts a
// slew to equatorial coordinates is not implemented, so after the checks
// pass it returns an error wrapping errors.ErrUnsupported.
func (m *Mount) StartSlewTo(ra, dec float64) error {
	if err := checkRaDec(ra, dec); err != nil {
		return fmt.Errorf("slew: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	if m.info.GPS != GpsReceivingValidData {
		return fmt.Errorf("slew: gps %v: %w", m.info.GPS, ErrPreconditionFailed)
	}
	return fmt.Errorf("slew to ra %.6f dec %.6f: %w", ra, dec, errors.ErrUnsupported)
}

// Park drives the mount to its stored park position.
func (m *Mount) Park() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	resp, err := m.execute(cmdPark, acknowledgeLength)
	if err != nil {
		return err
	}
	if resp != "1" {
		return fmt.Errorf("%s: response %q: %w", cmdPark, resp, ErrCommandRejected)
	}
	return nil
}

// Unpark releases the mount and resumes sidereal tracking. Failing to resume
// tracking is logged but does not fail the unpark.
func (m *Mount) Unpark() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	if _, err := m.execute(cmdUnpark, acknowledgeLength); err != nil {
		return err
	}
	if err := m.siderealTracking(); err != nil {
		m.logger.Warn("unpark: enabling sidereal tracking", zap.Error(err))
	}
	return nil
}

// SetParkPosition stores the park position (degrees) on the mount. Az must be
// in [0, 360) and alt in [-90, 90].
func (m *Mount) SetParkPosition(az, alt float64) error {
	if !(az >= 0 && az < 360) {
		return fmt.Errorf("park azimuth %v outside [0, 360): %w", az, ErrInvalidArgument)
	}
	if !(alt >= -90 && alt <= 90) {
		return fmt.Errorf("park altitude %v outside [-90, 90]: %w", alt, ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	if _, err := m.execute(setParkAzimuthCommand(az), acknowledgeLength); err != nil {
		return err
	}
	_, err := m.execute(setParkAltitudeCommand(alt), acknowledgeLength)
	return err
}

// ParkPosition reads the stored park position in degrees.
func (m *Mount) ParkPosition() (az, alt float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, 0, err
	}
	resp, err := m.execute(cmdParkPosition, status.ParkLength)
	if err != nil {
		return 0, 0, err
	}
	az, alt = status.DecodePark(resp)
	return az, alt, nil
}

// Abort stops all motion and tracking. Both commands are always sent.
func (m *Mount) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	_, stopErr := m.execute(cmdStop, acknowledgeLength)
	_, trackErr := m.execute(cmdTrackingOff, acknowledgeLength)
	return errors.Join(stopErr, trackErr)
}

func (m *Mount) siderealTracking() error {
	if _, err := m.execute(cmdSiderealRate, acknowledgeLength); err != nil {
		return err
	}
	_, err := m.execute(cmdTrackingOn, acknowledgeLength)
	return err
}

// SetSiderealTracking selects the sidereal rate and starts tracking.
func (m *Mount) SetSiderealTracking() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	return m.siderealTracking()
}

func (m *Mount) SetTrackingOff() error {
	return m.sequence(cmdTrackingOff)
}

// SetTrackingRates is not supported by this driver; the request is logged
// and ignored. Use SetSiderealTracking or SetTrackingOff.
func (m *Mount) SetTrackingRates(on, ignoreRates bool, raRate, decRate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	m.logger.Warn("custom tracking rates are not implemented; request ignored",
		zap.Bool("on", on),
		zap.Bool("ignore_rates", ignoreRates),
		zap.Float64("ra_rate", raRate),
		zap.Float64("dec_rate", decRate))
	return nil
}

// TrackRates refreshes status and returns RA/Dec rates in arc-seconds per
// second and whether the mount is tracking.
func (m *Mount) TrackRates() (ra, dec float64, on bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, 0, false, err
	}
	if err := m.refresh(); err != nil {
		return 0, 0, false, err
	}
	ra, dec, on = status.TrackRates(m.info.Status, m.info.TrackingRate)
	return ra, dec, on, nil
}

// GotoZero slews to the zero (home) position.
func (m *Mount) GotoZero() error {
	return m.sequence(cmdGotoZero)
}

// FindZero starts the mount's home-finding routine.
func (m *Mount) FindZero() error {
	return m.sequence(cmdFindZero)
}

// GotoFlats points the tube at the zenith for flat frames and stops
// tracking.
func (m *Mount) GotoFlats() error {
	return m.sequence(cmdFlatsAltitude, cmdFlatsAzimuth, cmdSlewAltAz, cmdTrackingOff)
}

// sequence sends acknowledged commands in order, stopping at the first error.
func (m *Mount) sequence(cmds ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if _, err := m.execute(cmd, acknowledgeLength); err != nil {
			return err
		}
	}
	return nil
}
