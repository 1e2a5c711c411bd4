package routing

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSpeedKph is assumed when an edge carries no usable speed tag.
const DefaultSpeedKph = 40.0

const mphToKph = 1.60934

var speedTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseSpeedTag extracts a speed in km/h from a raw maxspeed tag. Tags are
// free-form OSM values: "50", "50 km/h", "30 mph", "signals", lists joined
// by ";". The first numeric token wins; an explicit mph marker converts the
// value. Returns false when no numeric token is present.
func ParseSpeedTag(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	match := speedTokenRe.FindString(s)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(s, "mph") {
		value *= mphToKph
	}
	return value, true
}

// EdgeSpeedKph resolves the travel speed for an edge, falling back to the
// city default when the tag is absent, non-numeric or non-positive.
func EdgeSpeedKph(raw string) float64 {
	speed, ok := ParseSpeedTag(raw)
	if !ok || speed <= 0 {
		return DefaultSpeedKph
	}
	return speed
}
