package status

import (
	"math"
	"strconv"
	"strings"
)

const (
	// TicksPerDegree is the number of 0.01 arc-second ticks in one degree.
	TicksPerDegree = 3600 / 0.01
	// DecBias is added to declination, latitude and altitude class fields so
	// the wire value is never negative (90 degrees in ticks).
	DecBias = 32400000
)

// DegreesToTicks rounds to the nearest 0.01 arc-second.
func DegreesToTicks(deg float64) int64 {
	return int64(math.Round(deg * TicksPerDegree))
}

func TicksToDegrees(ticks int64) float64 {
	return float64(ticks) / TicksPerDegree
}

// BiasedTicks converts a declination-class angle to its non-negative wire
// encoding.
func BiasedTicks(deg float64) int64 {
	return DegreesToTicks(deg + 90)
}

func UnbiasedDegrees(ticks int64) float64 {
	return TicksToDegrees(ticks - DecBias)
}

// parseTicks parses a fixed-width decimal field. Fields that are not valid
// decimal integers decode as zero instead of failing, matching the mount's
// firmware tolerance of blank or garbled fields.
func parseTicks(field string) int64 {
	field = strings.TrimSpace(field)
	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Field returns raw[offset:offset+width], clipped to the buffer so that a
// short response yields an empty (zero-valued) field rather than a panic.
func Field(raw string, offset, width int) string {
	if offset >= len(raw) {
		return ""
	}
	end := offset + width
	if end > len(raw) {
		end = len(raw)
	}
	return raw[offset:end]
}

// Ticks decodes a fixed-width tick field with the lenient zero rule.
func Ticks(raw string, offset, width int) int64 {
	return parseTicks(Field(raw, offset, width))
}

func digit(raw string, offset int) int {
	return int(parseTicks(Field(raw, offset, 1)))
}
