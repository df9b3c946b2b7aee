// Package simulator runs an in-process mount that answers the iOptron V3
// command set over a net.Pipe.
package simulator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/w1xm/ioptron_interface/ioptron/internal/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Discrete simulation step size
	stepSize = 25 * time.Millisecond
	// Default time taken by any goto, park or home
	defaultSlewTime = 2 * time.Second

	firmware1 = "210105210105"
	firmware2 = "200821200821"
)

// moveRates are the :SR1# to :SR7# manual rates, in multiples of sidereal.
var moveRates = []float64{1, 2, 8, 16, 64, 128, 256}

type Simulator struct {
	conn   io.ReadWriteCloser
	logger *zap.Logger

	mu       sync.Mutex
	model    string
	info     status.Info
	tracking bool
	ra, dec  float64
	pier     status.PierSide

	pendingRA, pendingDec float64
	parkAz, parkAlt       float64
	altAzTarget           [2]float64

	slewSteps  int
	slewTime   time.Duration
	slewTarget status.MountStatus

	moveDir  byte
	moveRate int
	muted    map[string]bool
}

// New returns a simulated CEM120 and the host end of its connection.
func New(logger *zap.Logger) (*Simulator, net.Conn) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a, b := net.Pipe()
	return &Simulator{
		conn:   a,
		logger: logger,
		model:  "0120",
		info: status.Info{
			Longitude:  -71.0928,
			Latitude:   42.3601,
			GPS:        status.GpsReceivingValidData,
			Status:     status.Stopped,
			TimeSource: status.TimeSourceGPS,
			Hemisphere: status.North,
		},
		pier:     status.PierEast,
		parkAlt:  42.3601,
		moveRate: 1,
		slewTime: defaultSlewTime,
		muted:    make(map[string]bool),
	}, b
}

// SetModel sets the four digit :MountInfo# code.
func (s *Simulator) SetModel(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = code
}

func (s *Simulator) SetGPS(gps status.GpsStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.GPS = gps
}

func (s *Simulator) SetStatus(st status.MountStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Status = st
	s.slewSteps = 0
}

// SetSlewTime sets how long gotos take.
func (s *Simulator) SetSlewTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slewTime = d
}

// SetPointing moves the mount to ra/dec in degrees.
func (s *Simulator) SetPointing(ra, dec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ra, s.dec = ra, dec
}

// Pointing returns the current ra/dec in degrees.
func (s *Simulator) Pointing() (ra, dec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ra, s.dec
}

// Status returns the simulated general status.
func (s *Simulator) Status() status.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	info.Parked = info.Status == status.Parked
	return info
}

// Mute makes the simulator ignore op (e.g. "GEP"), so the host times out.
func (s *Simulator) Mute(op string, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted[op] = muted
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(stepSize)
	defer t.Stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.step()
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(s.reader)
	return g.Wait()
}

// scanCommands splits the input into ':'...'#' frames, discarding noise
// between frames.
func scanCommands(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.IndexByte(data, ':')
	if start < 0 {
		return len(data), nil, nil
	}
	if end := bytes.IndexByte(data[start:], '#'); end >= 0 {
		return start + end + 1, data[start : start+end+1], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return start, nil, nil
}

func (s *Simulator) reader() error {
	scanner := bufio.NewScanner(s.conn)
	scanner.Split(scanCommands)
	for scanner.Scan() {
		input := scanner.Text()
		s.logger.Debug("host->sim", zap.String("command", input))
		reply, err := s.handle(input)
		if err != nil {
			s.logger.Warn("handling command", zap.String("command", input), zap.Error(err))
			continue
		}
		if reply == "" {
			continue
		}
		s.logger.Debug("sim->host", zap.String("response", reply))
		if _, err := io.WriteString(s.conn, reply); err != nil {
			return fmt.Errorf("writing port: %w", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("reading port: %w", err)
	}
	return nil
}

var cmdRE = regexp.MustCompile(`^:([A-Za-z]+?)([+-]?[0-9]*)#$`)

// handle applies one command and returns the bytes to send back, if any.
func (s *Simulator) handle(input string) (string, error) {
	parts := cmdRE.FindStringSubmatch(input)
	if parts == nil {
		return "", fmt.Errorf("unrecognized command %q", input)
	}
	op, arg := parts[1], parts[2]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted[op] {
		return "", nil
	}
	switch op {
	case "MountInfo":
		return s.model, nil
	case "FW":
		switch arg {
		case "1":
			return firmware1 + "#", nil
		case "2":
			return firmware2 + "#", nil
		}
	case "GLS":
		return status.Encode(s.info)
	case "GEP":
		return fmt.Sprintf("%+09d%09d%d1#",
			status.DegreesToTicks(s.dec), status.DegreesToTicks(s.ra), int(s.pier)), nil
	case "GPC":
		return fmt.Sprintf("%08d%09d#", status.DegreesToTicks(s.parkAz), status.BiasedTicks(s.parkAlt)), nil
	case "SRA":
		return s.setTicks(arg, func(t int64) { s.pendingRA = status.TicksToDegrees(t) })
	case "Sds":
		return s.setTicks(arg, func(t int64) { s.pendingDec = status.UnbiasedDegrees(t) })
	case "SPA":
		return s.setTicks(arg, func(t int64) { s.parkAz = status.TicksToDegrees(t) })
	case "SPH":
		return s.setTicks(arg, func(t int64) { s.parkAlt = status.UnbiasedDegrees(t) })
	case "Sa":
		return s.setTicks(arg, func(t int64) { s.altAzTarget[0] = status.UnbiasedDegrees(t) })
	case "Sz":
		return s.setTicks(arg, func(t int64) { s.altAzTarget[1] = status.TicksToDegrees(t) })
	case "CM":
		s.ra, s.dec = s.pendingRA, s.pendingDec
		return "1", nil
	case "RT":
		d, err := strconv.Atoi(arg)
		if err != nil {
			return "", err
		}
		s.info.TrackingRate = status.TrackingRateFromDigit(d)
		return "1", nil
	case "ST":
		s.tracking = arg == "1"
		switch {
		case s.tracking && s.info.Status == status.Stopped:
			s.info.Status = status.Tracking
		case !s.tracking && s.info.Status.IsTracking():
			s.info.Status = status.Stopped
		}
		return "1", nil
	case "MH", "MSH":
		s.slew(status.Homed)
		return "1", nil
	case "MSS":
		s.slew(status.Stopped)
		return "1", nil
	case "MP":
		if arg == "1" {
			s.tracking = false
			s.slew(status.Parked)
		} else if s.info.Status == status.Parked {
			s.info.Status = status.Stopped
		}
		return "1", nil
	case "Q":
		s.moveDir = 0
		if s.info.Status == status.Slewing || s.info.Status == status.Flipping {
			s.slewSteps = 0
			s.settle(status.Stopped)
		}
		return "1", nil
	case "qD":
		if s.moveDir == 'n' || s.moveDir == 's' {
			s.moveDir = 0
		}
		return "1", nil
	case "qR":
		if s.moveDir == 'e' || s.moveDir == 'w' {
			s.moveDir = 0
		}
		return "1", nil
	case "SR":
		d, err := strconv.Atoi(arg)
		if err != nil || d < 1 || d > len(moveRates) {
			return "0", nil
		}
		s.moveRate = d
		return "1", nil
	case "mn", "ms", "me", "mw":
		s.moveDir = op[1]
		return "", nil
	}
	return "", fmt.Errorf("unknown command %q %q", op, arg)
}

func (s *Simulator) setTicks(arg string, set func(int64)) (string, error) {
	t, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "0", nil
	}
	set(t)
	return "1", nil
}

// slew starts a goto that ends in target. The caller must hold s.mu.
func (s *Simulator) slew(target status.MountStatus) {
	s.info.Status = status.Slewing
	s.slewTarget = target
	s.slewSteps = int(s.slewTime / stepSize)
	if s.slewSteps == 0 {
		s.settle(target)
	}
}

// settle ends a goto. Stopped resumes tracking if it was on.
func (s *Simulator) settle(target status.MountStatus) {
	if target == status.Stopped && s.tracking {
		target = status.Tracking
	}
	s.info.Status = target
}

func (s *Simulator) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Status == status.Slewing {
		s.slewSteps--
		if s.slewSteps <= 0 {
			s.settle(s.slewTarget)
		}
	}
	if s.moveDir == 0 {
		return
	}
	delta := moveRates[s.moveRate-1] * status.SiderealRate / 3600 * stepSize.Seconds()
	switch s.moveDir {
	case 'n':
		s.dec = min(s.dec+delta, 90)
	case 's':
		s.dec = max(s.dec-delta, -90)
	case 'e':
		s.ra -= delta
	case 'w':
		s.ra += delta
	}
}
