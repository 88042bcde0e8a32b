// Package treewalk walks go-git trees depth-first and asks a filter
// which entries to enter and which blobs to report.
package treewalk

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/wzshiming/lfsscan/pkg/lfs"
	"github.com/wzshiming/lfsscan/pkg/treefilter"
)

// SkipAll can be returned by a WalkFunc to stop the walk without an error.
var SkipAll = errors.New("skip everything and stop the walk")

// Filter decides entries during a walk. *treefilter.PointerFilter implements it.
type Filter interface {
	Include(w treefilter.Walk) (bool, error)
	Pointer() *lfs.Pointer
}

// Match is a blob the filter included.
type Match struct {
	Path    string
	Hash    plumbing.Hash
	Mode    filemode.FileMode
	Pointer *lfs.Pointer
}

// WalkFunc is called for every included blob.
type WalkFunc func(m Match) error

// Walker walks trees stored in a go-git object storer.
type Walker struct {
	storer    storer.EncodedObjectStorer
	recursive bool
	logger    Logger
}

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

type Option func(*Walker)

// WithRecursive makes the walk enter subtrees the filter accepts.
func WithRecursive(recursive bool) Option {
	return func(w *Walker) {
		w.recursive = recursive
	}
}

// WithLogger logs skipped entries.
func WithLogger(logger Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a Walker reading objects from s.
func NewWalker(s storer.EncodedObjectStorer, opts ...Option) *Walker {
	w := &Walker{
		storer: s,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Recursive reports whether the walker enters subtrees.
func (w *Walker) Recursive() bool {
	return w.recursive
}

// At positions a filter evaluation on entry e, found at path p.
func (w *Walker) At(p string, e object.TreeEntry) *Position {
	return &Position{
		walker: w,
		path:   p,
		entry:  e,
	}
}

// Walk visits tree in depth-first order, calling fn for every blob f includes.
// Subtrees are entered only when f includes them. Gitlinks are skipped
// since their commits live in another repository.
//
// The context is checked between entries.
func (w *Walker) Walk(ctx context.Context, tree *object.Tree, f Filter, fn WalkFunc) error {
	err := w.walk(ctx, tree, "", f, fn)
	if errors.Is(err, SkipAll) {
		return nil
	}
	return err
}

func (w *Walker) walk(ctx context.Context, tree *object.Tree, dir string, f Filter, fn WalkFunc) error {
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := path.Join(dir, entry.Name)
		if entry.Mode == filemode.Submodule {
			if w.logger != nil {
				w.logger.Printf("Skipping submodule %s at %s", p, entry.Hash)
			}
			continue
		}

		pos := w.At(p, entry)
		ok, err := f.Include(pos)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if !ok {
			continue
		}

		if pos.IsSubtree() {
			subtree, err := object.GetTree(w.storer, entry.Hash)
			if err != nil {
				return fmt.Errorf("failed to get subtree %s: %w", p, err)
			}
			if err := w.walk(ctx, subtree, p, f, fn); err != nil {
				return err
			}
			continue
		}

		err = fn(Match{
			Path:    p,
			Hash:    entry.Hash,
			Mode:    entry.Mode,
			Pointer: f.Pointer(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Position is the entry currently being evaluated. It implements treefilter.Walk.
type Position struct {
	walker *Walker
	path   string
	entry  object.TreeEntry
}

var _ treefilter.Walk = (*Position)(nil)

// Path is the slash separated path of the entry from the walk root.
func (p *Position) Path() string {
	return p.path
}

// Entry returns the tree entry.
func (p *Position) Entry() object.TreeEntry {
	return p.entry
}

func (p *Position) IsSubtree() bool {
	return p.entry.Mode == filemode.Dir
}

func (p *Position) Recursive() bool {
	return p.walker.recursive
}

func (p *Position) Hash() plumbing.Hash {
	return p.entry.Hash
}

func (p *Position) ObjectReader() treefilter.ObjectReader {
	return objectReader{storer: p.walker.storer}
}

type objectReader struct {
	storer storer.EncodedObjectStorer
}

// Open loads any object type so that a non-blob is reported as
// ErrUnexpectedObjectType instead of being hidden as not found.
func (r objectReader) Open(hash plumbing.Hash) (treefilter.Object, error) {
	obj, err := r.storer.EncodedObject(plumbing.AnyObject, hash)
	if err != nil {
		return nil, err
	}
	if obj.Type() != plumbing.BlobObject {
		return nil, fmt.Errorf("%w: %s is a %s, not a blob", treefilter.ErrUnexpectedObjectType, hash, obj.Type())
	}
	return obj, nil
}
