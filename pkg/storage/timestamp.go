package storage

import "math"

// maxSeconds is the largest seconds value whose millisecond form still fits
// in an int64.
const maxSeconds = math.MaxInt64 / 1000

// NormalizeTimestamp converts a backend timestamp in fractional seconds to
// integer milliseconds since the epoch. A nil or zero input is returned
// unchanged and means "no timestamp". Non-finite or out-of-range values are
// also treated as missing.
func NormalizeTimestamp(raw *float64) *int64 {
	if raw == nil {
		return nil
	}

	if *raw == 0 {
		zero := int64(0)

		return &zero
	}

	if math.IsNaN(*raw) || math.IsInf(*raw, 0) ||
		math.Abs(*raw) >= maxSeconds {
		return nil
	}

	// Round half up.
	ms := int64(math.Floor(*raw*1000 + 0.5))

	return &ms
}

// Millis normalizes raw and falls back to 0 when there is no timestamp.
func Millis(raw *float64) int64 {
	if ms := NormalizeTimestamp(raw); ms != nil {
		return *ms
	}

	return 0
}
