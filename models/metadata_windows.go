//go:build windows

package models

import (
	"fmt"
	"os"
)

// ReadMetadata stats path, following symlinks, without reading any content.
func ReadMetadata(path string) (FileMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	return FileMetadata{
		Path:         path,
		LastModified: info.ModTime().UnixMilli(),
		Size:         info.Size(),
	}, nil
}
