//go:build linux

package fsx

import (
	"io/fs"
	"syscall"
	"time"
)

// CreatedAt approximates a file's birth time with the inode change
// time; plain stat(2) does not expose btime.
func CreatedAt(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
