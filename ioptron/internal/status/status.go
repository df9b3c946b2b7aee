package status

import (
	"fmt"
	"strings"
)

type MountStatus int

const (
	Stopped MountStatus = iota
	Tracking
	Slewing
	Flipping
	PecTracking
	Parked
	Homed
)

func (s MountStatus) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Tracking:
		return "Tracking"
	case Slewing:
		return "Slewing"
	case Flipping:
		return "Flipping"
	case PecTracking:
		return "PecTracking"
	case Parked:
		return "Parked"
	case Homed:
		return "Homed"
	}
	return fmt.Sprintf("MountStatus(%d)", int(s))
}

// statusDigits is the wire digit for each status. Digit 3 (auto-guiding) has
// no status of its own and decodes as Tracking.
var statusDigits = map[int]MountStatus{
	0: Stopped,
	1: Tracking,
	2: Slewing,
	3: Tracking,
	4: Flipping,
	5: PecTracking,
	6: Parked,
	7: Homed,
}

func MountStatusFromDigit(d int) MountStatus {
	if s, ok := statusDigits[d]; ok {
		return s
	}
	return Stopped
}

func (s MountStatus) Digit() int {
	switch s {
	case Tracking:
		return 1
	case Slewing:
		return 2
	case Flipping:
		return 4
	case PecTracking:
		return 5
	case Parked:
		return 6
	case Homed:
		return 7
	}
	return 0
}

type GpsStatus int

const (
	GpsNotReceiving GpsStatus = iota
	GpsReceivingButInvalid
	GpsReceivingValidData
)

func (g GpsStatus) String() string {
	switch g {
	case GpsNotReceiving:
		return "NotReceiving"
	case GpsReceivingButInvalid:
		return "ReceivingButInvalid"
	case GpsReceivingValidData:
		return "ReceivingValidData"
	}
	return fmt.Sprintf("GpsStatus(%d)", int(g))
}

func GpsStatusFromDigit(d int) GpsStatus {
	switch d {
	case 1:
		return GpsReceivingButInvalid
	case 2:
		return GpsReceivingValidData
	}
	return GpsNotReceiving
}

type TrackingRate int

const (
	Sidereal TrackingRate = iota
	Lunar
	Solar
	King
	Custom
)

func (r TrackingRate) String() string {
	switch r {
	case Sidereal:
		return "Sidereal"
	case Lunar:
		return "Lunar"
	case Solar:
		return "Solar"
	case King:
		return "King"
	case Custom:
		return "Custom"
	}
	return fmt.Sprintf("TrackingRate(%d)", int(r))
}

func TrackingRateFromDigit(d int) TrackingRate {
	if d >= int(Sidereal) && d <= int(Custom) {
		return TrackingRate(d)
	}
	return Sidereal
}

type TimeSource int

const (
	TimeSourceUnknown TimeSource = iota
	TimeSourceHost
	TimeSourceHandController
	TimeSourceGPS
)

func (t TimeSource) String() string {
	switch t {
	case TimeSourceHost:
		return "Host"
	case TimeSourceHandController:
		return "HandController"
	case TimeSourceGPS:
		return "GPS"
	}
	return "Unknown"
}

func TimeSourceFromDigit(d int) TimeSource {
	if d >= int(TimeSourceHost) && d <= int(TimeSourceGPS) {
		return TimeSource(d)
	}
	return TimeSourceUnknown
}

type Hemisphere int

const (
	South Hemisphere = iota
	North
)

func (h Hemisphere) String() string {
	if h == North {
		return "North"
	}
	return "South"
}

// Info is the decoded :GLS# (general status) response.
type Info struct {
	// Longitude and Latitude are in degrees; east and north are positive.
	Longitude float64
	Latitude  float64

	GPS          GpsStatus
	Status       MountStatus
	TrackingRate TrackingRate
	TimeSource   TimeSource
	Hemisphere   Hemisphere

	// Parked is derived from Status.
	Parked bool
}

// GeneralStatusLength is the :GLS# response length including the terminator.
const GeneralStatusLength = 24

type field struct {
	name   string
	offset int
	width  int
	decode func(raw string, info *Info)
	encode func(info Info) string
}

func digitField(name string, offset int, decode func(d int, info *Info), encode func(info Info) int) field {
	return field{
		name:   name,
		offset: offset,
		width:  1,
		decode: func(raw string, info *Info) { decode(digit(raw, offset), info) },
		encode: func(info Info) string { return fmt.Sprintf("%1d", encode(info)) },
	}
}

// generalStatus is the fixed-width layout of the :GLS# response.
var generalStatus = []field{
	{
		name: "longitude", offset: 0, width: 9,
		decode: func(raw string, info *Info) { info.Longitude = TicksToDegrees(Ticks(raw, 0, 9)) },
		encode: func(info Info) string { return fmt.Sprintf("%+09d", DegreesToTicks(info.Longitude)) },
	},
	{
		name: "latitude", offset: 9, width: 8,
		decode: func(raw string, info *Info) { info.Latitude = UnbiasedDegrees(Ticks(raw, 9, 8)) },
		encode: func(info Info) string { return fmt.Sprintf("%08d", BiasedTicks(info.Latitude)) },
	},
	digitField("gps", 17,
		func(d int, info *Info) { info.GPS = GpsStatusFromDigit(d) },
		func(info Info) int { return int(info.GPS) }),
	digitField("status", 18,
		func(d int, info *Info) { info.Status = MountStatusFromDigit(d) },
		func(info Info) int { return info.Status.Digit() }),
	digitField("tracking rate", 19,
		func(d int, info *Info) { info.TrackingRate = TrackingRateFromDigit(d) },
		func(info Info) int { return int(info.TrackingRate) }),
	{
		name: "reserved", offset: 20, width: 1,
		decode: func(string, *Info) {},
		encode: func(Info) string { return "0" },
	},
	digitField("time source", 21,
		func(d int, info *Info) { info.TimeSource = TimeSourceFromDigit(d) },
		func(info Info) int { return int(info.TimeSource) }),
	digitField("hemisphere", 22,
		func(d int, info *Info) { info.Hemisphere = Hemisphere(d & 1) },
		func(info Info) int { return int(info.Hemisphere) }),
}

// Decode parses a :GLS# payload. It never fails: unparseable or missing
// fields decode as zero.
func Decode(raw string) Info {
	var info Info
	for _, f := range generalStatus {
		f.decode(raw, &info)
	}
	info.Parked = info.Status == Parked
	return info
}

// Encode renders info in the :GLS# layout, including the terminator. Values
// that do not fit their field, such as a latitude beyond 90 degrees, are an
// error.
func Encode(info Info) (string, error) {
	if !(info.Latitude >= -90 && info.Latitude <= 90) {
		return "", fmt.Errorf("latitude %v outside [-90, 90]", info.Latitude)
	}
	var b strings.Builder
	for _, f := range generalStatus {
		s := f.encode(info)
		if len(s) != f.width {
			return "", fmt.Errorf("%s: %q does not fit in %d bytes", f.name, s, f.width)
		}
		b.WriteString(s)
	}
	b.WriteByte('#')
	return b.String(), nil
}
