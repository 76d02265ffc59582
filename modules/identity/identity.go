// Package identity derives cache keys that change whenever a file has probably changed.
//
// The key is a digest of the path, the modification time and the size. Reading the
// content would be exact, but costs a full read per file, which is what the key exists
// to avoid.
package identity

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/Leantar/fdi/models"
	"github.com/Leantar/fdi/modules/hashengine"
)

// Generator is bound to one hash context and must stay with the worker that owns it.
type Generator struct {
	hc  *hashengine.Context
	buf []byte
}

func NewGenerator(hc *hashengine.Context) *Generator {
	return &Generator{hc: hc}
}

// Compute stats path once and returns its identity key.
// Errors from the stat call are returned unchanged.
func (g *Generator) Compute(path string) (string, error) {
	meta, err := models.ReadMetadata(path)
	if err != nil {
		return "", err
	}

	return g.FromMetadata(meta), nil
}

// FromMetadata returns the key for already known metadata.
func (g *Generator) FromMetadata(meta models.FileMetadata) string {
	g.buf = append(g.buf[:0], meta.Path...)
	g.buf = binary.BigEndian.AppendUint64(g.buf, uint64(meta.LastModified))
	g.buf = binary.BigEndian.AppendUint64(g.buf, uint64(meta.Size))

	return hex.EncodeToString(g.hc.Digest(g.buf))
}
