//go:build !linux

package fsx

import (
	"io/fs"
	"time"
)

// CreatedAt falls back to the modification time on platforms without a
// portable way to read btime or ctime.
func CreatedAt(info fs.FileInfo) time.Time {
	return info.ModTime()
}
