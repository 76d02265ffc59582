package models

import (
	"fmt"
	"time"
)

// FileMetadata is the part of a file's stat information that identifies a version of it.
type FileMetadata struct {
	Path string
	// LastModified is in milliseconds since the Unix epoch.
	LastModified int64
	Size         int64
}

func (m FileMetadata) String() string {
	return fmt.Sprintf("%s (%d bytes, modified %s)", m.Path, m.Size, time.UnixMilli(m.LastModified).UTC().Format(time.RFC3339))
}

// Fingerprint is a fixed-length summary of file content. Callers must not modify it once created.
type Fingerprint []byte

// Clone returns a copy that does not share memory with f.
func (f Fingerprint) Clone() Fingerprint {
	if f == nil {
		return nil
	}
	c := make(Fingerprint, len(f))
	copy(c, f)
	return c
}

// FingerprintedFile pairs a path with the fingerprint of its content.
type FingerprintedFile struct {
	Path        string
	Key         string
	Fingerprint Fingerprint
}
