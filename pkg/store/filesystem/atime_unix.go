//go:build linux || darwin || freebsd

package filesystem

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// readAtime reads a file's last-access time from its platform Stat_t,
// grounded on backend/local/metadata_linux.go's readTime. It is used by
// the startup reindex to seed the evicting map in true LRU order.
func readAtime(fi os.FileInfo) (time.Time, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(atimeSpec(st)), true
}

// touchAtime bumps path's atime to now while leaving mtime untouched,
// grounded on backend/local/lchtimes_unix.go's use of
// unix.UtimesNanoAt/NsecToTimespec.
func touchAtime(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	now := unix.NsecToTimespec(time.Now().UnixNano())
	mtime := unix.NsecToTimespec(fi.ModTime().UnixNano())
	utimes := [2]unix.Timespec{now, mtime}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, utimes[:], unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &os.PathError{Op: "touchAtime", Path: path, Err: err}
	}
	return nil
}
