package domain

import "slices"

// Views holds the two filtered views of one reading sequence.
type Views struct {
	// All is every parsed row, used for row counts.
	All []Reading
	// Valid keeps rows with a numeric, nonzero river level, used for
	// mean, last-value, min and max.
	Valid []Reading
}

// FilterValid splits readings into both views in one pass. Rows without a
// timestamp cannot reach this point; the normalizer drops them. The input
// slice is not modified.
func FilterValid(readings []Reading) Views {
	v := Views{
		All:   slices.Clone(readings),
		Valid: make([]Reading, 0, len(readings)),
	}
	for _, r := range readings {
		if r.Timestamp.IsZero() {
			continue
		}
		if r.HasValidLevel() {
			v.Valid = append(v.Valid, r)
		}
	}
	return v
}

// FilterInterval returns the readings falling inside interval, optionally
// restricted to the given operators (an empty set keeps everyone).
func FilterInterval(readings []Reading, interval DateInterval, operators []string) []Reading {
	keep := make(map[string]struct{}, len(operators))
	for _, op := range operators {
		keep[op] = struct{}{}
	}
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if !interval.Contains(r.Timestamp) {
			continue
		}
		if len(keep) > 0 {
			if _, ok := keep[r.Operator]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
