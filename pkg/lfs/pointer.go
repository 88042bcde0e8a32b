package lfs

import (
	"bytes"
	"io"

	"github.com/git-lfs/git-lfs/v3/lfs"
)

// MaxPointerSize is the largest blob that can still be an LFS pointer.
// Anything bigger is rejected before its content is read.
const MaxPointerSize = 1024

// Pointer is a parsed LFS pointer record.
type Pointer = lfs.Pointer

// ParseFunc parses a pointer from r.
// It returns nil, nil when the content is not a pointer.
type ParseFunc func(r io.Reader) (*Pointer, error)

// DecodePointer parses an LFS pointer from a reader.
// Returns nil without an error if the content is not a valid LFS pointer,
// read errors are returned as is.
func DecodePointer(r io.Reader) (*Pointer, error) {
	// One extra byte tells an oversized stream apart from a full-sized pointer.
	data, err := io.ReadAll(io.LimitReader(r, MaxPointerSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data) > MaxPointerSize {
		return nil, nil
	}

	// The content is fully buffered, so any decode error is a malformed record.
	ptr, err := lfs.DecodePointer(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	return ptr, nil
}

// NewPointer returns the pointer record for content with the given sha256 oid and size.
func NewPointer(oid string, size int64) *Pointer {
	return lfs.NewPointer(oid, size, nil)
}

// Encode returns the canonical text form of p.
func Encode(p *Pointer) string {
	return p.Encoded()
}
