//go:build linux

package filesystem

import "syscall"

func atimeSpec(st *syscall.Stat_t) (sec, nsec int64) {
	return st.Atim.Unix()
}
