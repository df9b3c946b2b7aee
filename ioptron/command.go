package ioptron

import (
	"fmt"
	"strings"
	"time"

	"github.com/w1xm/ioptron_interface/ioptron/internal/status"
	"go.uber.org/zap"
)

// Protocol docs: iOptron RS-232 Command Language V3.
// Commands start with ':' and end with '#'; the terminator never appears
// inside a payload.

const (
	cmdMountInfo      = ":MountInfo#"
	cmdFirmware1      = ":FW1#"
	cmdFirmware2      = ":FW2#"
	cmdGeneralStatus  = ":GLS#"
	cmdPosition       = ":GEP#"
	cmdSyncCommit     = ":CM#"
	cmdSiderealRate   = ":RT0#"
	cmdTrackingOn     = ":ST1#"
	cmdTrackingOff    = ":ST0#"
	cmdGotoZero       = ":MH#"
	cmdFindZero       = ":MSH#"
	cmdSlewAltAz      = ":MSS#"
	cmdPark           = ":MP1#"
	cmdUnpark         = ":MP0#"
	cmdParkPosition   = ":GPC#"
	cmdStop           = ":Q#"
	cmdStopDecAxis    = ":qD#"
	cmdStopRAAxis     = ":qR#"
	cmdFlatsAltitude  = ":Sa+32400000#"
	cmdFlatsAzimuth   = ":Sz000000000#"
	modelCodeLength   = 4
	firmwareLength    = 13
	acknowledgeLength = 1
)

const terminator = '#'

func setRACommand(ra float64) string {
	return fmt.Sprintf(":SRA%+09d#", status.DegreesToTicks(ra))
}

func setDecCommand(dec float64) string {
	return fmt.Sprintf(":Sds%+09d#", status.BiasedTicks(dec))
}

func setParkAzimuthCommand(az float64) string {
	return fmt.Sprintf(":SPA%09d#", status.DegreesToTicks(az))
}

func setParkAltitudeCommand(alt float64) string {
	return fmt.Sprintf(":SPH%08d#", status.BiasedTicks(alt))
}

// opcode strips framing and numeric payload from a command so it can be used
// as a low-cardinality label.
func opcode(cmd string) string {
	op := strings.TrimSuffix(strings.TrimPrefix(cmd, ":"), "#")
	return strings.TrimRight(op, "+-0123456789")
}

// execute sends cmd and reads a response of exactly n bytes, returning it
// without the trailing terminator. n == 0 sends without reading.
// The caller must hold m.mu.
func (m *Mount) execute(cmd string, n int) (resp string, err error) {
	start := m.clock.Now()
	defer func() {
		m.observer.ObserveCommand(opcode(cmd), err, m.clock.Now().Sub(start))
		if err != nil {
			m.logger.Debug("command failed", zap.String("command", cmd), zap.Error(err))
		} else {
			m.logger.Debug("command", zap.String("command", cmd), zap.String("response", resp))
		}
	}()

	if err := m.t.Purge(); err != nil {
		return "", fmt.Errorf("%s: purging: %w: %v", cmd, ErrTransport, err)
	}
	written, err := m.t.Write([]byte(cmd))
	if err != nil {
		return "", fmt.Errorf("%s: writing: %w: %v", cmd, ErrTransport, err)
	}
	if written != len(cmd) {
		return "", fmt.Errorf("%s: short write (%d of %d bytes): %w", cmd, written, len(cmd), ErrTransport)
	}
	if err := m.t.Flush(); err != nil {
		return "", fmt.Errorf("%s: flushing: %w: %v", cmd, ErrTransport, err)
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	got, err := m.t.ReadExact(buf, m.timeout)
	if err != nil {
		return "", fmt.Errorf("%s: reading: %w: %v", cmd, ErrTransport, err)
	}
	switch {
	case got == 0:
		return "", fmt.Errorf("%s: no response after %v: %w", cmd, m.timeout, ErrTimeout)
	case got != n:
		return "", fmt.Errorf("%s: got %d bytes %q, want %d: %w", cmd, got, buf[:got], n, ErrMalformedResponse)
	}
	if buf[n-1] == terminator {
		buf = buf[:n-1]
	}
	return string(buf), nil
}

// Observer receives command and status events, e.g. for metrics.
type Observer interface {
	ObserveCommand(op string, err error, elapsed time.Duration)
	ObserveStatus(info Info)
}

type nopObserver struct{}

func (nopObserver) ObserveCommand(string, error, time.Duration) {}
func (nopObserver) ObserveStatus(Info)                          {}
