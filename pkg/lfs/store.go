package lfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ObjectStatus describes the local copy of the object a pointer refers to.
type ObjectStatus string

const (
	ObjectPresent      ObjectStatus = "present"
	ObjectMissing      ObjectStatus = "missing"
	ObjectSizeMismatch ObjectStatus = "size-mismatch"
)

// LocalStore is the object directory git-lfs keeps inside a repository.
// It is only read, never written.
type LocalStore struct {
	basePath string
}

// NewLocalStore returns the store rooted at basePath, e.g. ".git/lfs/objects".
func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{basePath: basePath}
}

// LocalStoreFor finds the object directory of the repository at repoPath,
// for both working copies and bare repositories.
func LocalStoreFor(repoPath string) *LocalStore {
	dotGit := filepath.Join(repoPath, ".git")
	if stat, err := os.Stat(dotGit); err == nil && stat.IsDir() {
		return NewLocalStore(filepath.Join(dotGit, "lfs", "objects"))
	}
	return NewLocalStore(filepath.Join(repoPath, "lfs", "objects"))
}

// Path returns where the object with oid is stored.
func (s *LocalStore) Path(oid string) string {
	return filepath.Join(s.basePath, transformKey(oid))
}

// Status reports whether the content described by p is available locally.
func (s *LocalStore) Status(p *Pointer) (ObjectStatus, error) {
	stat, err := os.Stat(s.Path(p.Oid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectMissing, nil
		}
		return "", err
	}
	if stat.Size() != p.Size {
		return ObjectSizeMismatch, nil
	}
	return ObjectPresent, nil
}

// transformKey lays objects out as git-lfs does: ab/cd/abcd...
func transformKey(key string) string {
	if len(key) < 5 {
		return key
	}
	return filepath.Join(key[0:2], key[2:4], key)
}
