//go:build darwin || linux || freebsd

package models

import (
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ReadMetadata stats path, following symlinks, without reading any content.
func ReadMetadata(path string) (FileMetadata, error) {
	var stat unix.Stat_t

	err := unix.Stat(path, &stat)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to stat path %s: %w", path, &fs.PathError{Op: "stat", Path: path, Err: err})
	}

	sec, nsec := stat.Mtim.Unix()

	return FileMetadata{
		Path:         path,
		LastModified: sec*1000 + nsec/1_000_000,
		Size:         stat.Size,
	}, nil
}
