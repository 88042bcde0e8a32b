package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	ErrRepositoryNotExists = git.ErrRepositoryNotExists
	ErrRevisionNotFound    = plumbing.ErrReferenceNotFound
)

type Repository struct {
	repo *git.Repository
}

func IsRepository(repoPath string) bool {
	stat, err := os.Stat(filepath.Join(repoPath, "HEAD"))
	if err == nil && stat.Size() != 0 {
		return true
	}
	stat, err = os.Stat(filepath.Join(repoPath, ".git", "HEAD"))
	return err == nil && stat.Size() != 0
}

// ResolvePath maps a repository name onto a bare repository under repoDir.
// It returns "" for names that would escape repoDir.
func ResolvePath(repoDir, name string) string {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return ""
		}
	}
	if !strings.HasSuffix(name, ".git") {
		name += ".git"
	}
	return filepath.Join(repoDir, filepath.FromSlash(name))
}

func Init(repoPath string, defaultBranch string) (*Repository, error) {
	repo, err := git.PlainInitWithOptions(repoPath, &git.PlainInitOptions{
		Bare: true,
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	if err != nil {
		return nil, err
	}
	return &Repository{repo: repo}, nil
}

// Open opens a bare repository or a working copy.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{})
	if err != nil {
		return nil, err
	}
	return &Repository{repo: repo}, nil
}

// New wraps an already opened repository, e.g. one backed by memory storage.
func New(repo *git.Repository) *Repository {
	return &Repository{repo: repo}
}

func (r *Repository) DefaultBranch() string {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil || head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "main"
	}
	return head.Target().Short()
}

func (r *Repository) Branches() ([]string, error) {
	branchesIter, err := r.repo.Branches()
	if err != nil {
		return nil, err
	}

	var branches []string
	err = branchesIter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return branches, nil
}

// Commit resolves a revision, "" meaning the default branch.
func (r *Repository) Commit(rev string) (*object.Commit, error) {
	if rev == "" {
		rev = r.DefaultBranch()
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("revision %q: %w", rev, ErrRevisionNotFound)
		}
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}
	return commit, nil
}

// SplitRevisionAndPath splits "ref/with/slashes/some/path" at the longest
// prefix that resolves to a revision.
func (r *Repository) SplitRevisionAndPath(refpath string) (string, string, error) {
	refpath = strings.Trim(refpath, "/")
	if refpath == "" {
		return r.DefaultBranch(), "", nil
	}

	parts := strings.Split(refpath, "/")
	for i := len(parts); i > 0; i-- {
		rev := strings.Join(parts[:i], "/")
		if _, err := r.repo.ResolveRevision(plumbing.Revision(rev)); err == nil {
			return rev, strings.Join(parts[i:], "/"), nil
		}
	}
	return "", "", fmt.Errorf("no revision found in %q: %w", refpath, ErrRevisionNotFound)
}

// IsNotFoundError reports whether err means a revision, path or object is missing.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRevisionNotFound) ||
		errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, object.ErrDirectoryNotFound) ||
		errors.Is(err, object.ErrEntryNotFound) ||
		errors.Is(err, object.ErrFileNotFound)
}
