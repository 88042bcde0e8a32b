// Package index persists pointer scan results so that an unchanged commit
// is never walked twice. The storage is handled by boltdb.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/boltdb/bolt"

	"github.com/wzshiming/lfsscan/pkg/repository"
)

var (
	errNoBucket = errors.New("Bucket not found")
)

var (
	pointersBucket = []byte("pointers")
)

// Key identifies one scan of a repository.
type Key struct {
	Commit    string
	Path      string
	Recursive bool
}

func (k Key) bytes() []byte {
	return []byte(k.Commit + "\x00" + k.Path + "\x00" + strconv.FormatBool(k.Recursive))
}

// Index maps scans to their results, grouped per repository.
type Index struct {
	db *bolt.DB
}

// Open opens or creates the index database at dbFile.
func Open(dbFile string) (*Index, error) {
	err := os.MkdirAll(filepath.Dir(dbFile), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory for boltdb file %s: %w", dbFile, err)
	}
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb file %s: %w", dbFile, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pointersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

// Get returns the stored result of a scan, or nil if there is none.
func (i *Index) Get(repo string, k Key) (*repository.ScanResult, error) {
	var res *repository.ScanResult
	err := i.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pointersBucket)
		if bucket == nil {
			return errNoBucket
		}
		repoBucket := bucket.Bucket([]byte(repo))
		if repoBucket == nil {
			return nil
		}

		data := repoBucket.Get(k.bytes())
		if data == nil {
			return nil
		}
		res = &repository.ScanResult{}
		return json.Unmarshal(data, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Put stores the result of a scan.
func (i *Index) Put(repo string, k Key, res *repository.ScanResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return i.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pointersBucket)
		if bucket == nil {
			return errNoBucket
		}
		repoBucket, err := bucket.CreateBucketIfNotExists([]byte(repo))
		if err != nil {
			return err
		}
		return repoBucket.Put(k.bytes(), data)
	})
}

// Forget drops every stored scan of repo.
func (i *Index) Forget(repo string) error {
	return i.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pointersBucket)
		if bucket == nil {
			return errNoBucket
		}
		err := bucket.DeleteBucket([]byte(repo))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Len returns the number of stored scans of repo.
func (i *Index) Len(repo string) (int, error) {
	var n int
	err := i.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pointersBucket)
		if bucket == nil {
			return errNoBucket
		}
		repoBucket := bucket.Bucket([]byte(repo))
		if repoBucket == nil {
			return nil
		}
		n = repoBucket.Stats().KeyN
		return nil
	})
	return n, err
}
