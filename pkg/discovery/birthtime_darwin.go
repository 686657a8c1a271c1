//go:build darwin

package discovery

import (
	"os"
	"syscall"
	"time"
)

// birthTime returns the file's creation time. APFS and HFS+ always record
// one.
func birthTime(path string) (time.Time, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return time.Time{}, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(stat.Birthtimespec.Sec, stat.Birthtimespec.Nsec), true
}
