package repository

import (
	"fmt"
	"path"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/wzshiming/lfsscan/pkg/treefilter"
	"github.com/wzshiming/lfsscan/pkg/treewalk"
)

var (
	ErrObjectNotFound = plumbing.ErrObjectNotFound
)

// TreeEntry represents a file or directory in the repository
type TreeEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"` // "blob", "tree" or "commit"
	Mode    string `json:"mode"`
	SHA     string `json:"sha"`
	IsLFS   bool   `json:"isLfs,omitempty"`
	LFSOid  string `json:"lfsOid,omitempty"`
	LFSSize int64  `json:"lfsSize,omitempty"`
}

// Tree lists the directory at path in revision ref, marking LFS pointers.
func (r *Repository) Tree(ref string, dir string) ([]TreeEntry, error) {
	commit, err := r.Commit(ref)
	if err != nil {
		return nil, err
	}

	tree, err := r.subtree(commit, dir)
	if err != nil {
		return nil, err
	}

	walker := treewalk.NewWalker(r.repo.Storer)
	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		p := path.Join(dir, entry.Name)
		te := TreeEntry{
			Name: entry.Name,
			Path: p,
			Mode: formatMode(entry.Mode),
			SHA:  entry.Hash.String(),
		}

		switch entry.Mode {
		case filemode.Dir:
			te.Type = "tree"
		case filemode.Submodule:
			te.Type = "commit"
		default:
			te.Type = "blob"
			d, err := treefilter.Evaluate(walker.At(p, entry), nil)
			if err != nil {
				return nil, fmt.Errorf("failed to inspect %s: %w", p, err)
			}
			if d.Kind == treefilter.Included {
				te.IsLFS = true
				te.LFSOid = d.Pointer.Oid
				te.LFSSize = d.Pointer.Size
			}
		}
		entries = append(entries, te)
	}
	return entries, nil
}

func (r *Repository) subtree(commit *object.Commit, dir string) (*object.Tree, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree object: %w", err)
	}
	if dir == "" {
		return tree, nil
	}

	entry, err := tree.FindEntry(dir)
	if err != nil {
		return nil, fmt.Errorf("path %q not found: %w", dir, err)
	}
	if entry.Mode != filemode.Dir {
		return nil, fmt.Errorf("path %q is not a directory: %w", dir, object.ErrDirectoryNotFound)
	}

	tree, err = r.repo.TreeObject(entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get subtree object: %w", err)
	}
	return tree, nil
}

func formatMode(mode filemode.FileMode) string {
	switch mode {
	case filemode.Dir:
		return "dir"
	case filemode.Regular:
		return "regular"
	case filemode.Executable:
		return "executable"
	case filemode.Symlink:
		return "symlink"
	case filemode.Submodule:
		return "submodule"
	default:
		return fmt.Sprintf("unknown(%07o)", uint32(mode))
	}
}
