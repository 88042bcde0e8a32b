// Package treefilter decides, entry by entry during a tree walk, which
// entries are Git LFS pointers.
package treefilter

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/wzshiming/lfsscan/pkg/lfs"
)

var (
	// ErrObjectNotFound is returned when an entry's object is missing from the store.
	ErrObjectNotFound = plumbing.ErrObjectNotFound
	// ErrUnexpectedObjectType is returned when an entry's object is not a blob.
	ErrUnexpectedObjectType = plumbing.ErrInvalidType
)

// Object is a loaded git object.
type Object interface {
	Size() int64
	Reader() (io.ReadCloser, error)
}

// ObjectReader loads objects by hash.
type ObjectReader interface {
	Open(hash plumbing.Hash) (Object, error)
}

// Walk is the current position of a tree walk.
type Walk interface {
	// IsSubtree reports whether the current entry is a directory.
	IsSubtree() bool
	// Recursive reports whether the walk is configured to enter subtrees.
	Recursive() bool
	// Hash is the object id of the current entry.
	Hash() plumbing.Hash
	ObjectReader() ObjectReader
}

// Kind is the outcome of evaluating one entry.
type Kind int

const (
	// Excluded is a blob that is not a pointer, or too large to be one.
	Excluded Kind = iota
	// Included is a blob holding a valid pointer.
	Included
	// SubtreeDescend is a subtree the walk should enter.
	SubtreeDescend
	// SubtreeSkip is a subtree the walk should not enter.
	SubtreeSkip
)

func (k Kind) String() string {
	switch k {
	case Excluded:
		return "excluded"
	case Included:
		return "included"
	case SubtreeDescend:
		return "subtree-descend"
	case SubtreeSkip:
		return "subtree-skip"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is the result of Evaluate. Pointer is set only for Included.
type Decision struct {
	Kind    Kind
	Pointer *lfs.Pointer
}

// Include reports whether the entry passes the filter.
func (d Decision) Include() bool {
	return d.Kind == Included || d.Kind == SubtreeDescend
}

// Evaluate decides a single entry. A nil parse uses lfs.DecodePointer.
//
// Failures to load the object or read its content are returned as errors,
// never as Excluded.
func Evaluate(w Walk, parse lfs.ParseFunc) (Decision, error) {
	if w.IsSubtree() {
		if w.Recursive() {
			return Decision{Kind: SubtreeDescend}, nil
		}
		return Decision{Kind: SubtreeSkip}, nil
	}

	hash := w.Hash()
	obj, err := w.ObjectReader().Open(hash)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to open object %s: %w", hash, err)
	}
	if obj.Size() > lfs.MaxPointerSize {
		return Decision{Kind: Excluded}, nil
	}

	ptr, err := parsePointer(obj, parse)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read object %s: %w", hash, err)
	}
	if ptr == nil {
		return Decision{Kind: Excluded}, nil
	}
	return Decision{Kind: Included, Pointer: ptr}, nil
}

func parsePointer(obj Object, parse lfs.ParseFunc) (*lfs.Pointer, error) {
	if parse == nil {
		parse = lfs.DecodePointer
	}

	reader, err := obj.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()

	return parse(reader)
}

// IsObjectResolutionError reports whether err means the entry's object
// could not be resolved to a blob.
func IsObjectResolutionError(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrUnexpectedObjectType)
}
