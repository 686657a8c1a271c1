//go:build linux

package discovery

import (
	"time"

	"golang.org/x/sys/unix"
)

// birthTime returns the file's creation time where the filesystem records
// one. Needs statx (kernel 4.11+) and a filesystem that stores btime;
// anywhere else it reports ok=false and callers fall back to "modified".
func birthTime(path string) (time.Time, bool) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil {
		return time.Time{}, false
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	if stx.Btime.Sec == 0 && stx.Btime.Nsec == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
