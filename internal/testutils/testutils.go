package testutils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/wzshiming/lfsscan/pkg/lfs"
)

// PointerFor returns the pointer text and oid describing content.
func PointerFor(content string) (text string, oid string) {
	sum := sha256.Sum256([]byte(content))
	oid = hex.EncodeToString(sum[:])
	return lfs.Encode(lfs.NewPointer(oid, int64(len(content)))), oid
}

// NewMemoryRepository creates an empty in-memory repository whose HEAD
// points at the given branch.
func NewMemoryRepository(t *testing.T, defaultBranch string) *git.Repository {
	t.Helper()
	st := memory.NewStorage()
	repo, err := git.Init(st, nil)
	if err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(defaultBranch))
	if err := st.SetReference(head); err != nil {
		t.Fatalf("Failed to set HEAD: %v", err)
	}
	return repo
}

// WriteBlob stores content as a blob.
func WriteBlob(t *testing.T, s storer.EncodedObjectStorer, content string) plumbing.Hash {
	t.Helper()
	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		t.Fatalf("Failed to open blob writer: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write blob: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close blob writer: %v", err)
	}
	hash, err := s.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("Failed to store blob: %v", err)
	}
	return hash
}

// WriteTree stores files, keyed by slash separated path, as nested trees
// and returns the root tree hash.
func WriteTree(t *testing.T, s storer.EncodedObjectStorer, files map[string]string) plumbing.Hash {
	t.Helper()
	blobs := map[string]string{}
	dirs := map[string]map[string]string{}
	for p, content := range files {
		name, rest, nested := strings.Cut(p, "/")
		if !nested {
			blobs[name] = content
			continue
		}
		if dirs[name] == nil {
			dirs[name] = map[string]string{}
		}
		dirs[name][rest] = content
	}

	var entries []object.TreeEntry
	for name, content := range blobs {
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: WriteBlob(t, s, content),
		})
	}
	for name, sub := range dirs {
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: WriteTree(t, s, sub),
		})
	}
	return WriteEntries(t, s, entries)
}

// WriteEntries stores a single tree with the given entries.
func WriteEntries(t *testing.T, s storer.EncodedObjectStorer, entries []object.TreeEntry) plumbing.Hash {
	t.Helper()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	tree := &object.Tree{Entries: entries}
	obj := s.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		t.Fatalf("Failed to encode tree: %v", err)
	}
	hash, err := s.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("Failed to store tree: %v", err)
	}
	return hash
}

// Commit writes a commit of files on top of the branch tip and moves the branch to it.
func Commit(t *testing.T, repo *git.Repository, branch string, files map[string]string) plumbing.Hash {
	t.Helper()
	return CommitTree(t, repo, branch, WriteTree(t, repo.Storer, files))
}

// CommitTree commits an existing tree on top of the branch tip.
func CommitTree(t *testing.T, repo *git.Repository, branch string, treeHash plumbing.Hash) plumbing.Hash {
	t.Helper()
	refName := plumbing.NewBranchReferenceName(branch)

	var parents []plumbing.Hash
	if ref, err := repo.Storer.Reference(refName); err == nil {
		parents = append(parents, ref.Hash())
	}

	sig := object.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Unix(1700000000, 0).UTC(),
	}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      "test commit\n",
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		t.Fatalf("Failed to encode commit: %v", err)
	}
	hash, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("Failed to store commit: %v", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		t.Fatalf("Failed to update %s: %v", refName, err)
	}
	return hash
}
