//go:build darwin || freebsd

package filesystem

import "syscall"

func atimeSpec(st *syscall.Stat_t) (sec, nsec int64) {
	return st.Atimespec.Unix()
}
