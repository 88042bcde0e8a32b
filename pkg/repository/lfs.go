package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/wzshiming/lfsscan/pkg/treefilter"
	"github.com/wzshiming/lfsscan/pkg/treewalk"
)

// LFSPointer represents a Git LFS object referenced from the repository
type LFSPointer struct {
	Oid  string `json:"oid"`  // SHA256 hash of the LFS object
	Size int64  `json:"size"` // Size of the LFS object in bytes
}

// PointerFile is a pointer blob found at a path of a tree.
type PointerFile struct {
	Path    string `json:"path"`
	BlobSHA string `json:"blobSha"`
	Oid     string `json:"oid"`
	Size    int64  `json:"size"`
	// Tracked is true when .gitattributes routes the path through the lfs filter.
	Tracked bool `json:"tracked"`
}

// ScanOptions controls ScanPointers.
type ScanOptions struct {
	// Path limits the scan to a directory.
	Path string
	// Recursive descends into subdirectories.
	Recursive bool
	// Filter is used instead of a new treefilter.PointerFilter.
	Filter treewalk.Filter
	Logger treewalk.Logger
}

// ScanResult is the outcome of scanning one commit.
type ScanResult struct {
	Commit   string        `json:"commit"`
	Pointers []PointerFile `json:"pointers"`
}

// ResolveCommitHash resolves rev, "" meaning the default branch.
func (r *Repository) ResolveCommitHash(rev string) (plumbing.Hash, error) {
	commit, err := r.Commit(rev)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit.Hash, nil
}

// ScanPointers lists the LFS pointer files in revision rev.
func (r *Repository) ScanPointers(ctx context.Context, rev string, opts ScanOptions) (*ScanResult, error) {
	commit, err := r.Commit(rev)
	if err != nil {
		return nil, err
	}

	tree, err := r.subtree(commit, opts.Path)
	if err != nil {
		return nil, err
	}

	attrs, err := r.gitAttributes(commit)
	if err != nil {
		return nil, err
	}

	f := opts.Filter
	if f == nil {
		f = treefilter.NewPointerFilter()
	}

	walkOpts := []treewalk.Option{treewalk.WithRecursive(opts.Recursive)}
	if opts.Logger != nil {
		walkOpts = append(walkOpts, treewalk.WithLogger(opts.Logger))
	}
	walker := treewalk.NewWalker(r.repo.Storer, walkOpts...)

	result := &ScanResult{
		Commit:   commit.Hash.String(),
		Pointers: []PointerFile{},
	}
	err = walker.Walk(ctx, tree, f, func(m treewalk.Match) error {
		p := joinPath(opts.Path, m.Path)
		result.Pointers = append(result.Pointers, PointerFile{
			Path:    p,
			BlobSHA: m.Hash.String(),
			Oid:     m.Pointer.Oid,
			Size:    m.Pointer.Size,
			Tracked: attrs.IsLFS(p),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", commit.Hash, err)
	}
	return result, nil
}

// ScanLFSPointers scans all branches in the repository for LFS pointer files
// and returns a list of unique LFS pointers, ordered by oid.
func (r *Repository) ScanLFSPointers(ctx context.Context) ([]LFSPointer, error) {
	branches, err := r.Branches()
	if err != nil {
		return nil, err
	}

	// One filter per walk, the walks run one after another.
	f := treefilter.NewPointerFilter()
	seen := make(map[string]LFSPointer)
	for _, branch := range branches {
		res, err := r.ScanPointers(ctx, plumbing.NewBranchReferenceName(branch).String(), ScanOptions{
			Recursive: true,
			Filter:    f,
		})
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", branch, err)
		}
		for _, p := range res.Pointers {
			seen[p.Oid] = LFSPointer{Oid: p.Oid, Size: p.Size}
		}
	}

	result := make([]LFSPointer, 0, len(seen))
	for _, ptr := range seen {
		result = append(result, ptr)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Oid < result[j].Oid
	})
	return result, nil
}

func joinPath(dir, p string) string {
	if dir == "" {
		return p
	}
	return dir + "/" + p
}
