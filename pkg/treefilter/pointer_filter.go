package treefilter

import (
	"github.com/wzshiming/lfsscan/pkg/lfs"
)

// PointerFilter is the stateful form of Evaluate. It remembers the pointer
// found by the last call to Include.
//
// A PointerFilter must not be shared between concurrent walks, use Clone.
type PointerFilter struct {
	parse   lfs.ParseFunc
	pointer *lfs.Pointer
}

type Option func(*PointerFilter)

// WithParser replaces the pointer parser.
func WithParser(parse lfs.ParseFunc) Option {
	return func(f *PointerFilter) {
		f.parse = parse
	}
}

// NewPointerFilter creates a PointerFilter.
func NewPointerFilter(opts ...Option) *PointerFilter {
	f := &PointerFilter{
		parse: lfs.DecodePointer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Include reports whether the current entry of w is a subtree to enter or
// a pointer blob. After a true result for a blob, Pointer returns the
// parsed pointer.
func (f *PointerFilter) Include(w Walk) (bool, error) {
	f.pointer = nil
	d, err := Evaluate(w, f.parse)
	if err != nil {
		return false, err
	}
	f.pointer = d.Pointer
	return d.Include(), nil
}

// Pointer returns the pointer found by the last Include, or nil.
func (f *PointerFilter) Pointer() *lfs.Pointer {
	return f.pointer
}

// ShouldBeRecursive is always false, descending is left to the walk.
func (f *PointerFilter) ShouldBeRecursive() bool {
	return false
}

// Clone returns a filter with the same parser and no last result.
func (f *PointerFilter) Clone() *PointerFilter {
	return &PointerFilter{
		parse: f.parse,
	}
}
