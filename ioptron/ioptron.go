package ioptron

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/w1xm/ioptron_interface/ioptron/internal/status"
	"go.uber.org/zap"
)

// Transport is a byte channel to the mount, exclusively owned by one Mount.
type Transport interface {
	Write(p []byte) (int, error)
	// ReadExact reads up to len(p) bytes, returning early only when timeout
	// elapses. A short count with a nil error means the deadline passed.
	ReadExact(p []byte, timeout time.Duration) (int, error)
	// Flush waits for pending output to be sent.
	Flush() error
	// Purge discards unread input and unsent output.
	Purge() error
	Close() error
}

type (
	Info         = status.Info
	Position     = status.Position
	MountStatus  = status.MountStatus
	GpsStatus    = status.GpsStatus
	TrackingRate = status.TrackingRate
	TimeSource   = status.TimeSource
	Hemisphere   = status.Hemisphere
	PierSide     = status.PierSide
)

const (
	Stopped     = status.Stopped
	Tracking    = status.Tracking
	Slewing     = status.Slewing
	Flipping    = status.Flipping
	PecTracking = status.PecTracking
	Parked      = status.Parked
	Homed       = status.Homed

	GpsNotReceiving        = status.GpsNotReceiving
	GpsReceivingButInvalid = status.GpsReceivingButInvalid
	GpsReceivingValidData  = status.GpsReceivingValidData

	Sidereal = status.Sidereal
	Lunar    = status.Lunar
	Solar    = status.Solar
	King     = status.King
	Custom   = status.Custom

	PierEast    = status.PierEast
	PierWest    = status.PierWest
	PierUnknown = status.PierUnknown
)

// DefaultTimeout is the per-read response deadline.
const DefaultTimeout = 1 * time.Second

type Config struct {
	// Timeout for each response read; defaults to DefaultTimeout.
	Timeout time.Duration
	// Logger defaults to a no-op logger.
	Logger   *zap.Logger
	Clock    Clock
	Observer Observer
}

// Mount is a session with one iOptron mount. All methods are safe for
// concurrent use; commands are serialized.
type Mount struct {
	t        Transport
	timeout  time.Duration
	logger   *zap.Logger
	clock    Clock
	observer Observer

	mu        sync.Mutex
	connected bool
	model     Model
	info      Info
	ra, dec   float64
	coords    gate
	slewPoll  gate
	// moveDir is the direction of the last open-loop move.
	moveDir Direction
}

// Connect identifies the mount on an already open transport. The session is
// only usable if the model query succeeds.
func Connect(t Transport, cfg Config) (*Mount, error) {
	m := &Mount{
		t:        t,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		observer: cfg.Observer,
		coords:   gate{interval: coordinateInterval},
		slewPoll: gate{interval: slewPollInterval},
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	code, err := m.execute(cmdMountInfo, modelCodeLength)
	if err != nil {
		return nil, fmt.Errorf("identifying mount: %w", err)
	}
	m.model = ModelFromCode(code)
	m.connected = true
	m.logger.Info("connected", zap.String("model", m.model.String()), zap.String("code", code))
	if m.model == ModelUnknown {
		m.logger.Warn("unsupported mount model", zap.String("code", code))
	}
	if err := m.refresh(); err != nil {
		m.logger.Warn("reading initial status", zap.Error(err))
	}
	return m, nil
}

// Disconnect releases the transport. The Mount cannot be reused.
func (m *Mount) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	m.connected = false
	m.coords.reset()
	m.slewPoll.reset()
	return errors.Join(m.t.Flush(), m.t.Purge(), m.t.Close())
}

func (m *Mount) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Mount) Model() Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// RefractionCorrection reports whether the connected model corrects for
// refraction itself.
func (m *Mount) RefractionCorrection() bool {
	return m.Model().RefractionCorrection()
}

func (m *Mount) checkConnected() error {
	if !m.connected {
		return ErrNotConnected
	}
	return nil
}

// refresh re-reads the general status. The caller must hold m.mu.
func (m *Mount) refresh() error {
	resp, err := m.execute(cmdGeneralStatus, status.GeneralStatusLength)
	if err != nil {
		return err
	}
	m.info = status.Decode(resp)
	m.observer.ObserveStatus(m.info)
	return nil
}

// Status queries the mount's general status.
func (m *Mount) Status() (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return Info{}, err
	}
	if err := m.refresh(); err != nil {
		return Info{}, err
	}
	return m.info, nil
}

// LastStatus returns the most recently decoded status without querying.
func (m *Mount) LastStatus() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Firmware returns the mainboard and hand controller firmware dates.
func (m *Mount) Firmware() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return "", err
	}
	fw1, err := m.execute(cmdFirmware1, firmwareLength)
	if err != nil {
		return "", err
	}
	fw2, err := m.execute(cmdFirmware2, firmwareLength)
	if err != nil {
		return "", err
	}
	return fw1 + " " + fw2, nil
}

// RaDec returns the current pointing in degrees. Reads within 100ms of the
// last successful read return the cached value.
func (m *Mount) RaDec() (ra, dec float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return 0, 0, err
	}
	if m.coords.fresh(m.clock.Now()) {
		return m.ra, m.dec, nil
	}
	p, err := m.position()
	if err != nil {
		return 0, 0, err
	}
	return p.RA, p.Dec, nil
}

// Position always queries the mount, and updates the cached coordinates.
func (m *Mount) Position() (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return Position{}, err
	}
	return m.position()
}

func (m *Mount) position() (Position, error) {
	resp, err := m.execute(cmdPosition, status.PositionLength)
	if err != nil {
		return Position{}, err
	}
	p := status.DecodePosition(resp)
	m.ra, m.dec = p.RA, p.Dec
	m.coords.stamp(m.clock.Now())
	return p, nil
}

// IsSlewComplete reports whether a goto or flip has finished. The mount is
// queried at most every two seconds; in between the last status is reused.
func (m *Mount) IsSlewComplete() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return false, err
	}
	if now := m.clock.Now(); !m.slewPoll.fresh(now) {
		m.slewPoll.stamp(now)
		if err := m.refresh(); err != nil {
			return false, err
		}
	}
	return m.info.SlewComplete(), nil
}

// GPSGood reports whether the last status had a valid GPS fix.
func (m *Mount) GPSGood() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info.GPS == GpsReceivingValidData
}

// AtPark returns the parked flag from the last status refresh.
func (m *Mount) AtPark() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return false, err
	}
	return m.info.Parked, nil
}
