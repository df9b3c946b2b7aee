package status

// Tracking rates in arc-seconds per second.
const (
	SiderealRate = 15.0410681
	LunarRate    = 0.5490149
	SolarRate    = 0.0410681
)

// SlewComplete reports whether the mount has finished any goto or meridian
// flip.
func (i Info) SlewComplete() bool {
	return i.Status != Slewing && i.Status != Flipping
}

// IsTracking reports whether the status is one of the tracking states.
func (s MountStatus) IsTracking() bool {
	return s == Tracking || s == PecTracking
}

// TrackRates derives the RA/Dec rate offsets in arc-seconds per second and
// whether tracking is on. Rates are relative to sidereal while tracking; when
// not tracking the sidereal rate itself is reported for compatibility with
// hosts that display it.
func TrackRates(s MountStatus, r TrackingRate) (ra, dec float64, on bool) {
	if !s.IsTracking() {
		return SiderealRate, 0, false
	}
	switch r {
	case Lunar:
		return LunarRate, 0, true
	case Solar:
		return SolarRate, 0, true
	}
	// Sidereal is zero by convention. King and Custom are not resolved to a
	// magnitude.
	return 0, 0, true
}

// Position is the decoded :GEP# response.
type Position struct {
	// RA and Dec in degrees.
	RA, Dec float64
	PierSide PierSide
	// CounterweightUp is true when the pointing state digit is 0.
	CounterweightUp bool
}

type PierSide int

const (
	PierEast PierSide = iota
	PierWest
	PierUnknown
)

func (p PierSide) String() string {
	switch p {
	case PierEast:
		return "East"
	case PierWest:
		return "West"
	}
	return "Unknown"
}

// PositionLength is the :GEP# response length including the terminator.
const PositionLength = 21

// DecodePosition parses a :GEP# payload: a signed 9 byte declination field
// followed by a 9 byte right ascension field, pier side and pointing state.
func DecodePosition(raw string) Position {
	p := Position{
		Dec:      TicksToDegrees(Ticks(raw, 0, 9)),
		RA:       TicksToDegrees(Ticks(raw, 9, 9)),
		PierSide: PierUnknown,
	}
	if f := Field(raw, 18, 1); f != "" {
		switch parseTicks(f) {
		case 0:
			p.PierSide = PierEast
		case 1:
			p.PierSide = PierWest
		}
	}
	p.CounterweightUp = Field(raw, 19, 1) == "0"
	return p
}

// ParkLength is the :GPC# response length including the terminator.
const ParkLength = 18

// DecodePark parses a :GPC# payload: 8 bytes of azimuth then 9 bytes of
// biased altitude.
func DecodePark(raw string) (az, alt float64) {
	return TicksToDegrees(Ticks(raw, 0, 8)), UnbiasedDegrees(Ticks(raw, 8, 9))
}
