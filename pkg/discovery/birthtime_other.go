//go:build !linux && !darwin

package discovery

import "time"

// birthTime reports no creation time on platforms without a probe; every
// fallback record is "modified" there.
func birthTime(string) (time.Time, bool) {
	return time.Time{}, false
}
