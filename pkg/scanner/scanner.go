// Package scanner scans many repositories for LFS pointers concurrently.
package scanner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wzshiming/lfsscan/pkg/index"
	"github.com/wzshiming/lfsscan/pkg/repository"
	"github.com/wzshiming/lfsscan/pkg/treefilter"
)

// Logger defines the logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Target is a repository to scan.
type Target struct {
	Name string
	Repo *repository.Repository
}

// Result is the outcome for one Target. Exactly one of Scan and Err is set.
type Result struct {
	Name   string
	Scan   *repository.ScanResult
	Cached bool
	Err    error
}

// Request describes what to scan in every target.
type Request struct {
	// Revision to scan, "" for the default branch.
	Revision  string
	Path      string
	Recursive bool
}

// Scanner runs pointer scans on a bounded number of workers.
type Scanner struct {
	filter     *treefilter.PointerFilter
	index      *index.Index
	maxWorkers int
	logger     Logger
}

type Option func(*Scanner)

// WithIndex serves already scanned commits from idx and records new scans.
func WithIndex(idx *index.Index) Option {
	return func(s *Scanner) {
		s.index = idx
	}
}

// WithMaxWorkers bounds the number of concurrent scans.
func WithMaxWorkers(n int) Option {
	return func(s *Scanner) {
		s.maxWorkers = n
	}
}

// WithFilter sets the filter every worker clones.
func WithFilter(f *treefilter.PointerFilter) Option {
	return func(s *Scanner) {
		s.filter = f
	}
}

func WithLogger(logger Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		filter:     treefilter.NewPointerFilter(),
		maxWorkers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxWorkers < 1 {
		s.maxWorkers = 1
	}
	return s
}

// Scan scans every target. Results are in the order of targets; a failing
// target does not stop the others.
func (s *Scanner) Scan(ctx context.Context, req Request, targets []Target) []Result {
	results := make([]Result, len(targets))

	var g errgroup.Group
	g.SetLimit(s.maxWorkers)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			results[i] = s.ScanOne(ctx, req, target)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ScanOne scans a single target.
func (s *Scanner) ScanOne(ctx context.Context, req Request, target Target) Result {
	result := Result{Name: target.Name}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	commit, err := target.Repo.ResolveCommitHash(req.Revision)
	if err != nil {
		result.Err = err
		return result
	}
	key := index.Key{
		Commit:    commit.String(),
		Path:      req.Path,
		Recursive: req.Recursive,
	}

	if s.index != nil {
		cached, err := s.index.Get(target.Name, key)
		if err != nil {
			result.Err = fmt.Errorf("failed to read index: %w", err)
			return result
		}
		if cached != nil {
			result.Scan = cached
			result.Cached = true
			return result
		}
	}

	// Pin the resolved commit so a concurrent branch update can't mix revisions.
	scan, err := target.Repo.ScanPointers(ctx, key.Commit, repository.ScanOptions{
		Path:      req.Path,
		Recursive: req.Recursive,
		Filter:    s.filter.Clone(),
		Logger:    s.logger,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Scan = scan

	if s.index != nil {
		if err := s.index.Put(target.Name, key, scan); err != nil {
			if s.logger != nil {
				s.logger.Printf("Failed to index %s at %s: %v", target.Name, key.Commit, err)
			}
		}
	}

	if s.logger != nil {
		s.logger.Printf("Scanned %s at %s: %d pointer(s)", target.Name, key.Commit, len(scan.Pointers))
	}
	return result
}
