package ioptron

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeTransport answers each command with a scripted response.
type fakeTransport struct {
	responses map[string]string
	writeErr  error

	writes []string
	reads  int
	purges int
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]string{
		":MountInfo#": "0120",
		":GLS#":       glsResponse("2", "1"),
	}}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeTransport) ReadExact(p []byte, timeout time.Duration) (int, error) {
	f.reads++
	if len(f.writes) == 0 {
		return 0, nil
	}
	return copy(p, f.responses[f.writes[len(f.writes)-1]]), nil
}

func (f *fakeTransport) Flush() error { return nil }
func (f *fakeTransport) Purge() error { f.purges++; return nil }
func (f *fakeTransport) Close() error { f.closed = true; return nil }

func (f *fakeTransport) clear() {
	f.writes = nil
	f.reads = 0
	f.purges = 0
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// glsResponse builds a :GLS# response with the given gps and status digits.
func glsResponse(gps, st string) string {
	return "+00000000" + "32400000" + gps + st + "0" + "0" + "1" + "1" + "#"
}

func connect(t *testing.T, ft *fakeTransport) (*Mount, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m, err := Connect(ft, Config{Clock: clock})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ft.clear()
	return m, clock
}

func TestConnect(t *testing.T) {
	for _, test := range []struct {
		code  string
		model Model
	}{
		{"0030", ModelIEQ30Pro},
		{"0060", ModelCEM60},
		{"0061", ModelCEM60EC},
		{"0120", ModelCEM120},
		{"0121", ModelCEM120EC},
		{"0122", ModelCEM120EC2},
		{"0045", ModelUnknown},
	} {
		t.Run(test.code, func(t *testing.T) {
			ft := newFakeTransport()
			ft.responses[":MountInfo#"] = test.code
			m, err := Connect(ft, Config{})
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			if got := m.Model(); got != test.model {
				t.Errorf("Model() = %v, want %v", got, test.model)
			}
			if got, want := m.RefractionCorrection(), test.model.isCEM120(); got != want {
				t.Errorf("RefractionCorrection() = %v, want %v", got, want)
			}
			if diff := cmp.Diff([]string{":MountInfo#", ":GLS#"}, ft.writes); diff != "" {
				t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
			}
			if !m.GPSGood() {
				t.Errorf("GPSGood() = false after initial status")
			}
		})
	}
}

func TestConnectFails(t *testing.T) {
	ft := newFakeTransport()
	delete(ft.responses, ":MountInfo#")
	if _, err := Connect(ft, Config{}); !errors.Is(err, ErrTimeout) {
		t.Errorf("Connect error = %v, want ErrTimeout", err)
	}
}

func TestExecute(t *testing.T) {
	for _, test := range []struct {
		name     string
		response string
		n        int
		want     string
		wantErr  error
	}{
		{name: "strips terminator", response: "ABC#", n: 4, want: "ABC"},
		{name: "no terminator", response: "0120", n: 4, want: "0120"},
		{name: "fire and forget", response: "ignored", n: 0, want: ""},
		{name: "one byte short", response: "ABC", n: 4, wantErr: ErrMalformedResponse},
		{name: "silent", response: "", n: 4, wantErr: ErrTimeout},
	} {
		t.Run(test.name, func(t *testing.T) {
			ft := newFakeTransport()
			m, _ := connect(t, ft)
			ft.responses[":X#"] = test.response
			got, err := m.execute(":X#", test.n)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("execute error = %v, want %v", err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("execute = %q, want %q", got, test.want)
			}
			if ft.purges != 1 {
				t.Errorf("purges = %d, want 1", ft.purges)
			}
			if test.n == 0 && ft.reads != 0 {
				t.Errorf("fire and forget read %d times", ft.reads)
			}
		})
	}
}

func TestExecuteWriteError(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	ft.writeErr = errors.New("unplugged")
	if _, err := m.Status(); !errors.Is(err, ErrTransport) {
		t.Errorf("Status error = %v, want ErrTransport", err)
	}
	if !m.Connected() {
		t.Errorf("session disconnected after a single failure")
	}
}

func TestSyncTo(t *testing.T) {
	ft := newFakeTransport()
	for _, cmd := range []string{":SRA+04320000#", ":Sds+28800000#", ":CM#"} {
		ft.responses[cmd] = "1"
	}
	m, _ := connect(t, ft)
	if err := m.SyncTo(12.0, -10.0); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}
	want := []string{":GLS#", ":SRA+04320000#", ":Sds+28800000#", ":CM#"}
	if diff := cmp.Diff(want, ft.writes); diff != "" {
		t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
	}
}

func TestSyncToNegativeRA(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	ft.responses[":SRA-04320000#"] = "1"
	ft.responses[":Sds+64800000#"] = "1"
	ft.responses[":CM#"] = "1"
	if err := m.SyncTo(-12.0, 90.0); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}
}

func TestSyncToRequiresGPS(t *testing.T) {
	for _, gps := range []string{"0", "1"} {
		ft := newFakeTransport()
		m, _ := connect(t, ft)
		ft.responses[":GLS#"] = glsResponse(gps, "1")
		if err := m.SyncTo(12.0, -10.0); !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("gps %s: SyncTo error = %v, want ErrPreconditionFailed", gps, err)
		}
		if diff := cmp.Diff([]string{":GLS#"}, ft.writes); diff != "" {
			t.Errorf("gps %s: unexpected commands: got(+)/want(-):\n%s", gps, diff)
		}
	}
}

func TestSyncToAbortsOnFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":SRA+04320000#"] = "1"
	m, _ := connect(t, ft)
	if err := m.SyncTo(12.0, -10.0); !errors.Is(err, ErrTimeout) {
		t.Fatalf("SyncTo error = %v, want ErrTimeout", err)
	}
	want := []string{":GLS#", ":SRA+04320000#", ":Sds+28800000#"}
	if diff := cmp.Diff(want, ft.writes); diff != "" {
		t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
	}
}

func TestRaDecCache(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":GEP#"] = "-03600000" + "054000000" + "11" + "#"
	m, clock := connect(t, ft)

	ra, dec, err := m.RaDec()
	if err != nil {
		t.Fatalf("RaDec: %v", err)
	}
	if math.Abs(ra-150) > 1e-9 || math.Abs(dec+10) > 1e-9 {
		t.Errorf("RaDec = %v, %v; want 150, -10", ra, dec)
	}

	clock.Advance(99 * time.Millisecond)
	ft.responses[":GEP#"] = "+00000000" + "000000000" + "11" + "#"
	ra2, dec2, err := m.RaDec()
	if err != nil {
		t.Fatalf("RaDec: %v", err)
	}
	if ra2 != ra || dec2 != dec {
		t.Errorf("cached RaDec = %v, %v; want %v, %v", ra2, dec2, ra, dec)
	}
	if ft.reads != 1 {
		t.Errorf("transport reads = %d, want 1", ft.reads)
	}

	clock.Advance(time.Millisecond)
	ra3, dec3, err := m.RaDec()
	if err != nil {
		t.Fatalf("RaDec: %v", err)
	}
	if ra3 != 0 || dec3 != 0 {
		t.Errorf("RaDec after 100ms = %v, %v; want 0, 0", ra3, dec3)
	}
	if ft.reads != 2 {
		t.Errorf("transport reads = %d, want 2", ft.reads)
	}
}

func TestRaDecFailureNotCached(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	if _, _, err := m.RaDec(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("RaDec error = %v, want ErrTimeout", err)
	}
	ft.responses[":GEP#"] = "+00360000" + "000720000" + "11" + "#"
	ra, dec, err := m.RaDec()
	if err != nil {
		t.Fatalf("RaDec: %v", err)
	}
	if math.Abs(ra-2) > 1e-9 || math.Abs(dec-1) > 1e-9 {
		t.Errorf("RaDec = %v, %v; want 2, 1", ra, dec)
	}
}

func TestIsSlewComplete(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":GLS#"] = glsResponse("2", "2")
	m, clock := connect(t, ft)

	done, err := m.IsSlewComplete()
	if err != nil || done {
		t.Fatalf("IsSlewComplete = %v, %v; want false", done, err)
	}

	ft.responses[":GLS#"] = glsResponse("2", "1")
	clock.Advance(1999 * time.Millisecond)
	if done, _ := m.IsSlewComplete(); done {
		t.Errorf("IsSlewComplete re-queried within 2s")
	}
	if len(ft.writes) != 1 {
		t.Errorf("commands sent = %d, want 1", len(ft.writes))
	}

	clock.Advance(time.Millisecond)
	if done, _ := m.IsSlewComplete(); !done {
		t.Errorf("IsSlewComplete = false after refresh")
	}
	if len(ft.writes) != 2 {
		t.Errorf("commands sent = %d, want 2", len(ft.writes))
	}
}

func TestParkedStatus(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":GLS#"] = glsResponse("2", "6")
	m, _ := connect(t, ft)
	if _, err := m.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if parked, _ := m.AtPark(); !parked {
		t.Errorf("AtPark = false for parked status")
	}
	if done, _ := m.IsSlewComplete(); !done {
		t.Errorf("IsSlewComplete = false for parked status")
	}
}

func TestPark(t *testing.T) {
	for _, test := range []struct {
		response string
		wantErr  error
	}{
		{"1", nil},
		{"0", ErrCommandRejected},
		{"", ErrTimeout},
	} {
		ft := newFakeTransport()
		ft.responses[":MP1#"] = test.response
		m, _ := connect(t, ft)
		if err := m.Park(); !errors.Is(err, test.wantErr) {
			t.Errorf("response %q: Park error = %v, want %v", test.response, err, test.wantErr)
		}
	}
}

func TestUnpark(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ft := newFakeTransport()
	ft.responses[":MP0#"] = "1"
	m, err := Connect(ft, Config{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ft.clear()

	if err := m.Unpark(); err != nil {
		t.Fatalf("Unpark: %v", err)
	}
	if diff := cmp.Diff([]string{":MP0#", ":RT0#"}, ft.writes); diff != "" {
		t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
	}
	if logs.FilterMessageSnippet("sidereal tracking").Len() != 1 {
		t.Errorf("tracking failure not logged: %v", logs.All())
	}

	ft.clear()
	ft.responses[":RT0#"] = "1"
	ft.responses[":ST1#"] = "1"
	if err := m.Unpark(); err != nil {
		t.Fatalf("Unpark: %v", err)
	}
	if diff := cmp.Diff([]string{":MP0#", ":RT0#", ":ST1#"}, ft.writes); diff != "" {
		t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
	}
}

func TestAbort(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":ST0#"] = "1"
	m, _ := connect(t, ft)
	err := m.Abort()
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Abort error = %v, want ErrTimeout from :Q#", err)
	}
	if diff := cmp.Diff([]string{":Q#", ":ST0#"}, ft.writes); diff != "" {
		t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
	}
}

func TestSequences(t *testing.T) {
	for _, test := range []struct {
		name string
		run  func(m *Mount) error
		want []string
	}{
		{"GotoZero", (*Mount).GotoZero, []string{":MH#"}},
		{"FindZero", (*Mount).FindZero, []string{":MSH#"}},
		{"GotoFlats", (*Mount).GotoFlats, []string{":Sa+32400000#", ":Sz000000000#", ":MSS#", ":ST0#"}},
		{"SetSiderealTracking", (*Mount).SetSiderealTracking, []string{":RT0#", ":ST1#"}},
		{"SetTrackingOff", (*Mount).SetTrackingOff, []string{":ST0#"}},
	} {
		t.Run(test.name, func(t *testing.T) {
			ft := newFakeTransport()
			for _, cmd := range test.want {
				ft.responses[cmd] = "1"
			}
			m, _ := connect(t, ft)
			if err := test.run(m); err != nil {
				t.Fatalf("%s: %v", test.name, err)
			}
			if diff := cmp.Diff(test.want, ft.writes); diff != "" {
				t.Errorf("unexpected commands: got(+)/want(-):\n%s", diff)
			}
		})
	}
}

func TestOpenLoopMove(t *testing.T) {
	for _, test := range []struct {
		dir       Direction
		rate      int
		slewing   bool
		wantStart []string
		wantStop  string
	}{
		{North, 2, false, []string{":GLS#", ":SR3#", ":mn#"}, ":qD#"},
		{South, 0, false, []string{":GLS#", ":SR1#", ":ms#"}, ":qD#"},
		{East, 6, false, []string{":GLS#", ":SR7#", ":me#"}, ":qR#"},
		{West, 4, true, []string{":GLS#", ":Q#", ":SR5#", ":mw#"}, ":qR#"},
	} {
		t.Run(test.dir.String(), func(t *testing.T) {
			ft := newFakeTransport()
			m, _ := connect(t, ft)
			if test.slewing {
				ft.responses[":GLS#"] = glsResponse("2", "2")
			}
			for _, cmd := range []string{":Q#", ":SR1#", ":SR3#", ":SR5#", ":SR7#", ":qD#", ":qR#"} {
				ft.responses[cmd] = "1"
			}
			if err := m.StartOpenLoopMove(test.dir, test.rate); err != nil {
				t.Fatalf("StartOpenLoopMove: %v", err)
			}
			if diff := cmp.Diff(test.wantStart, ft.writes); diff != "" {
				t.Errorf("unexpected start commands: got(+)/want(-):\n%s", diff)
			}
			ft.clear()
			if err := m.StopOpenLoopMove(); err != nil {
				t.Fatalf("StopOpenLoopMove: %v", err)
			}
			if diff := cmp.Diff([]string{test.wantStop}, ft.writes); diff != "" {
				t.Errorf("unexpected stop commands: got(+)/want(-):\n%s", diff)
			}
		})
	}
}

func TestOpenLoopMoveInvalid(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	if err := m.StartOpenLoopMove(North, len(OpenLoopRates())); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StartOpenLoopMove error = %v, want ErrInvalidArgument", err)
	}
	if err := m.StartOpenLoopMove(DirectionNone, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StartOpenLoopMove error = %v, want ErrInvalidArgument", err)
	}
	if err := m.StopOpenLoopMove(); err != nil || len(ft.writes) != 0 {
		t.Errorf("StopOpenLoopMove without a move: err %v, commands %v", err, ft.writes)
	}
}

func TestParkPosition(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":SPA064800000#"] = "1"
	ft.responses[":SPH43200000#"] = "1"
	ft.responses[":GPC#"] = "64800000" + "043200000" + "#"
	m, _ := connect(t, ft)
	if err := m.SetParkPosition(180, 30); err != nil {
		t.Fatalf("SetParkPosition: %v", err)
	}
	az, alt, err := m.ParkPosition()
	if err != nil {
		t.Fatalf("ParkPosition: %v", err)
	}
	if math.Abs(az-180) > 1e-9 || math.Abs(alt-30) > 1e-9 {
		t.Errorf("ParkPosition = %v, %v; want 180, 30", az, alt)
	}
}

func TestCoordinatesOutOfRange(t *testing.T) {
	for _, test := range []struct {
		name string
		call func(m *Mount) error
	}{
		{"sync dec below -90", func(m *Mount) error { return m.SyncTo(0, -100) }},
		{"sync dec above 90", func(m *Mount) error { return m.SyncTo(0, 90.5) }},
		{"sync dec NaN", func(m *Mount) error { return m.SyncTo(0, math.NaN()) }},
		{"sync ra 360", func(m *Mount) error { return m.SyncTo(360, 0) }},
		{"slew dec below -90", func(m *Mount) error { return m.StartSlewTo(10, -91) }},
		{"park az negative", func(m *Mount) error { return m.SetParkPosition(-1, 30) }},
		{"park az 360", func(m *Mount) error { return m.SetParkPosition(360, 30) }},
		{"park alt below -90", func(m *Mount) error { return m.SetParkPosition(180, -90.01) }},
		{"park alt above 90", func(m *Mount) error { return m.SetParkPosition(180, 91) }},
	} {
		t.Run(test.name, func(t *testing.T) {
			ft := newFakeTransport()
			m, _ := connect(t, ft)
			if err := test.call(m); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
			if len(ft.writes) != 0 {
				t.Errorf("sent %v for an invalid argument", ft.writes)
			}
		})
	}
}

func TestCoordinatesAtLimits(t *testing.T) {
	ft := newFakeTransport()
	for _, cmd := range []string{":SRA+00000000#", ":Sds+00000000#", ":CM#", ":SPA000000000#", ":SPH64800000#"} {
		ft.responses[cmd] = "1"
	}
	m, _ := connect(t, ft)
	if err := m.SyncTo(0, -90); err != nil {
		t.Errorf("SyncTo(0, -90): %v", err)
	}
	if err := m.SetParkPosition(0, 90); err != nil {
		t.Errorf("SetParkPosition(0, 90): %v", err)
	}
}

func TestFirmware(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":FW1#"] = "210105210105#"
	ft.responses[":FW2#"] = "200821200821#"
	m, _ := connect(t, ft)
	got, err := m.Firmware()
	if err != nil {
		t.Fatalf("Firmware: %v", err)
	}
	if want := "210105210105 200821200821"; got != want {
		t.Errorf("Firmware = %q, want %q", got, want)
	}
}

func TestStartSlewTo(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	if err := m.StartSlewTo(10, 10); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("StartSlewTo error = %v, want ErrUnsupported", err)
	}
	if len(ft.writes) != 0 {
		t.Errorf("StartSlewTo sent %v", ft.writes)
	}
}

func TestTrackRates(t *testing.T) {
	ft := newFakeTransport()
	ft.responses[":GLS#"] = "+00000000" + "32400000" + "2" + "1" + "1" + "0" + "1" + "1" + "#"
	m, _ := connect(t, ft)
	ra, dec, on, err := m.TrackRates()
	if err != nil {
		t.Fatalf("TrackRates: %v", err)
	}
	if ra != 0.5490149 || dec != 0 || !on {
		t.Errorf("TrackRates = %v, %v, %v; want lunar", ra, dec, on)
	}
}

func TestSetTrackingRatesIgnored(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	if err := m.SetTrackingRates(true, false, 1, 2); err != nil {
		t.Errorf("SetTrackingRates: %v", err)
	}
	if len(ft.writes) != 0 {
		t.Errorf("SetTrackingRates sent %v", ft.writes)
	}
}

func TestDisconnect(t *testing.T) {
	ft := newFakeTransport()
	m, _ := connect(t, ft)
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !ft.closed {
		t.Errorf("transport not closed")
	}
	for name, op := range map[string]func() error{
		"Park":     m.Park,
		"Abort":    m.Abort,
		"GotoZero": m.GotoZero,
		"SyncTo":   func() error { return m.SyncTo(0, 0) },
		"RaDec":    func() error { _, _, err := m.RaDec(); return err },
		"Status":   func() error { _, err := m.Status(); return err },
	} {
		if err := op(); !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s after Disconnect: %v, want ErrNotConnected", name, err)
		}
	}
	if len(ft.writes) != 0 {
		t.Errorf("commands sent after disconnect: %v", ft.writes)
	}
}

func TestOpcode(t *testing.T) {
	for cmd, want := range map[string]string{
		":MountInfo#":    "MountInfo",
		":SRA+04320000#": "SRA",
		":Sds+28800000#": "Sds",
		":SPA064800000#": "SPA",
		":SR3#":          "SR",
		":GLS#":          "GLS",
		":Sa+32400000#":  "Sa",
		":Sz000000000#":  "Sz",
		":FW1#":          "FW",
	} {
		if got := opcode(cmd); got != want {
			t.Errorf("opcode(%q) = %q, want %q", cmd, got, want)
		}
	}
}
