package protocol

import "math"

// Raw value bounds.
const (
	// RawOff is the raw value for a fully off load.
	RawOff = 0

	// RawRelayOn is the raw value that closes a relay.
	RawRelayOn = 1

	// RawMax is the maximum raw value for a dimmer (100%).
	RawMax = 250
)

// DimmerRaw converts a 0-100 percentage level to the 0-250 raw scale.
// Out-of-range levels are clamped before conversion.
func DimmerRaw(level int) int {
	return int(math.Round(float64(ClampLevel(level)) * RawMax / 100))
}

// RelayRaw converts an on/off intent to the relay raw value.
func RelayRaw(on bool) int {
	if on {
		return RawRelayOn
	}
	return RawOff
}

// Level converts a raw wire value back to a 0-100 percentage.
//
// The wire uses the same value range and command code for relays and
// dimmers, so the conversion is a magnitude heuristic: 0 and 1 read as
// relay semantics (0%/100%), 2-250 scale linearly. A dimmer genuinely
// parked at raw 1 therefore misreads as 100%; callers that know the load
// kind carry it alongside the decoded level (see transport.Status) so
// they can second-guess this, but the decode itself deliberately matches
// the controller's established behavior.
func Level(raw int) int {
	switch {
	case raw <= RawOff:
		return 0
	case raw == RawRelayOn:
		return 100
	case raw >= RawMax:
		return 100
	default:
		return int(math.Round(float64(raw) / RawMax * 100))
	}
}

// ClampLevel limits a percentage to [0,100].
func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
