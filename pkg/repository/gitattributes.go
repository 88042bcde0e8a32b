package repository

import (
	"errors"
	"strings"

	"github.com/git-lfs/wildmatch/v2"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitAttributes represents parsed .gitattributes content and provides
// methods to check if a file path matches LFS filter patterns.
type GitAttributes struct {
	patterns []gitAttributePattern
}

type gitAttributePattern struct {
	matcher *wildmatch.Wildmatch
	isLFS   bool
}

// ParseGitAttributes parses .gitattributes content and extracts LFS-related patterns.
func ParseGitAttributes(content string) *GitAttributes {
	var patterns []gitAttributePattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		isLFS := false
		unsetLFS := false
		for _, attr := range fields[1:] {
			switch attr {
			case "filter=lfs":
				isLFS = true
			case "-filter", "!filter", "filter":
				unsetLFS = true
			}
		}
		if !isLFS && !unsetLFS {
			continue
		}

		// Anchored patterns only match from the root.
		pattern, anchored := strings.CutPrefix(fields[0], "/")
		matcher := wildmatch.NewWildmatch(pattern, wildmatch.Basename)
		if anchored {
			matcher = wildmatch.NewWildmatch(pattern)
		}
		patterns = append(patterns, gitAttributePattern{
			matcher: matcher,
			isLFS:   isLFS && !unsetLFS,
		})
	}
	return &GitAttributes{patterns: patterns}
}

// IsLFS returns true if the given file path matches an LFS filter pattern.
// The last matching line wins.
func (g *GitAttributes) IsLFS(filePath string) bool {
	if g == nil {
		return false
	}
	isLFS := false
	for _, p := range g.patterns {
		if p.matcher.Match(filePath) {
			isLFS = p.isLFS
		}
	}
	return isLFS
}

// gitAttributes reads the root .gitattributes of commit.
// A missing file yields nil, which matches nothing.
func (r *Repository) gitAttributes(commit *object.Commit) (*GitAttributes, error) {
	file, err := commit.File(".gitattributes")
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}

	content, err := file.Contents()
	if err != nil {
		return nil, err
	}
	return ParseGitAttributes(content), nil
}
