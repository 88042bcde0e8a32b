package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzshiming/lfsscan/internal/testutils"
	"github.com/wzshiming/lfsscan/pkg/treefilter"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name    string
		repoDir string
		urlPath string
		want    string
	}{
		{name: "empty path", repoDir: "/repos", urlPath: "", want: ""},
		{name: "simple repo path", repoDir: "/repos", urlPath: "user/repo", want: "/repos/user/repo.git"},
		{name: "path with .git suffix", repoDir: "/repos", urlPath: "user/repo.git", want: "/repos/user/repo.git"},
		{name: "path with leading slash", repoDir: "/repos", urlPath: "/user/repo", want: "/repos/user/repo.git"},
		{name: "path traversal attempt", repoDir: "/repos", urlPath: "../etc/passwd", want: ""},
		{name: "path traversal with dotdot in middle", repoDir: "/repos", urlPath: "user/../../../etc/passwd", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath(tt.repoDir, tt.urlPath))
		})
	}
}

func TestInitAndOpen(t *testing.T) {
	tmpDir := t.TempDir()
	assert.False(t, IsRepository(tmpDir))

	repoPath := filepath.Join(tmpDir, "test.git")
	repo, err := Init(repoPath, "develop")
	require.NoError(t, err)
	assert.Equal(t, "develop", repo.DefaultBranch())
	assert.True(t, IsRepository(repoPath))

	repo2, err := Open(repoPath)
	require.NoError(t, err)
	assert.Equal(t, "develop", repo2.DefaultBranch())

	branches, err := repo2.Branches()
	require.NoError(t, err)
	assert.Empty(t, branches)

	_, err = repo2.Commit("")
	assert.ErrorIs(t, err, ErrRevisionNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestOpenNonexistent(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrRepositoryNotExists)
}

func newTestRepository(t *testing.T) (*Repository, map[string]string) {
	t.Helper()
	gitRepo := testutils.NewMemoryRepository(t, "main")

	modelPtr, modelOid := testutils.PointerFor("model weights")
	dataPtr, dataOid := testutils.PointerFor("training data")
	stray, strayOid := testutils.PointerFor("committed without lfs")
	testutils.Commit(t, gitRepo, "main", map[string]string{
		".gitattributes":          "*.bin filter=lfs diff=lfs merge=lfs -text\ndata/*.parquet filter=lfs diff=lfs merge=lfs -text\n",
		"README.md":               "# models\n",
		"model.bin":               modelPtr,
		"data/train.parquet":      dataPtr,
		"data/stray.txt":          stray,
		"data/raw/readme.txt":     "raw data lives elsewhere",
		"data/raw/copy/model.bin": modelPtr,
	})

	featurePtr, featureOid := testutils.PointerFor("feature weights")
	testutils.Commit(t, gitRepo, "feature", map[string]string{
		"model.bin":   featurePtr,
		"other.bin":   modelPtr,
		"plain.bin":   "definitely not a pointer",
		"nested/a.md": "text",
	})

	return New(gitRepo), map[string]string{
		"model":   modelOid,
		"data":    dataOid,
		"stray":   strayOid,
		"feature": featureOid,
	}
}

func TestBranches(t *testing.T) {
	repo, _ := newTestRepository(t)
	assert.Equal(t, "main", repo.DefaultBranch())

	branches, err := repo.Branches()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "feature"}, branches)
}

func TestSplitRevisionAndPath(t *testing.T) {
	repo, _ := newTestRepository(t)

	tests := []struct {
		refpath  string
		wantRef  string
		wantPath string
		wantErr  bool
	}{
		{refpath: "", wantRef: "main", wantPath: ""},
		{refpath: "main", wantRef: "main", wantPath: ""},
		{refpath: "main/data/raw", wantRef: "main", wantPath: "data/raw"},
		{refpath: "feature/nested/", wantRef: "feature", wantPath: "nested"},
		{refpath: "nope/data", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.refpath, func(t *testing.T) {
			ref, p, err := repo.SplitRevisionAndPath(tt.refpath)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRevisionNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, ref)
			assert.Equal(t, tt.wantPath, p)
		})
	}
}

func pointerPaths(res *ScanResult) []string {
	paths := make([]string, 0, len(res.Pointers))
	for _, p := range res.Pointers {
		paths = append(paths, p.Path)
	}
	return paths
}

func TestScanPointers(t *testing.T) {
	repo, oids := newTestRepository(t)
	ctx := context.Background()

	t.Run("flat", func(t *testing.T) {
		res, err := repo.ScanPointers(ctx, "", ScanOptions{})
		require.NoError(t, err)
		require.Len(t, res.Pointers, 1)
		assert.Equal(t, "model.bin", res.Pointers[0].Path)
		assert.Equal(t, oids["model"], res.Pointers[0].Oid)
		assert.Equal(t, int64(len("model weights")), res.Pointers[0].Size)
		assert.True(t, res.Pointers[0].Tracked)

		head, err := repo.ResolveCommitHash("main")
		require.NoError(t, err)
		assert.Equal(t, head.String(), res.Commit)
	})

	t.Run("recursive", func(t *testing.T) {
		res, err := repo.ScanPointers(ctx, "main", ScanOptions{Recursive: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"model.bin",
			"data/train.parquet",
			"data/stray.txt",
			"data/raw/copy/model.bin",
		}, pointerPaths(res))

		for _, p := range res.Pointers {
			if p.Path == "data/stray.txt" {
				assert.False(t, p.Tracked, "stray pointer is not covered by .gitattributes")
				assert.Equal(t, oids["stray"], p.Oid)
			} else {
				assert.True(t, p.Tracked, p.Path)
			}
		}
	})

	t.Run("subdirectory", func(t *testing.T) {
		res, err := repo.ScanPointers(ctx, "main", ScanOptions{Path: "data", Recursive: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"data/train.parquet",
			"data/stray.txt",
			"data/raw/copy/model.bin",
		}, pointerPaths(res))
	})

	t.Run("no gitattributes", func(t *testing.T) {
		res, err := repo.ScanPointers(ctx, "feature", ScanOptions{Recursive: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"model.bin", "other.bin"}, pointerPaths(res))
		for _, p := range res.Pointers {
			assert.False(t, p.Tracked)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := repo.ScanPointers(ctx, "main", ScanOptions{Path: "nope"})
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("missing revision", func(t *testing.T) {
		_, err := repo.ScanPointers(ctx, "nope", ScanOptions{})
		assert.True(t, IsNotFoundError(err))
	})
}

func TestScanPointersCorruptTree(t *testing.T) {
	gitRepo := testutils.NewMemoryRepository(t, "main")
	missing := plumbing.NewHash("fedcba9876543210fedcba9876543210fedcba98")
	tree := testutils.WriteEntries(t, gitRepo.Storer, []object.TreeEntry{
		{Name: "gone.bin", Mode: filemode.Regular, Hash: missing},
	})
	testutils.CommitTree(t, gitRepo, "main", tree)

	_, err := New(gitRepo).ScanPointers(context.Background(), "", ScanOptions{})
	require.Error(t, err)
	assert.True(t, treefilter.IsObjectResolutionError(err))
}

func TestScanLFSPointers(t *testing.T) {
	repo, oids := newTestRepository(t)

	pointers, err := repo.ScanLFSPointers(context.Background())
	require.NoError(t, err)

	var got []string
	for _, p := range pointers {
		got = append(got, p.Oid)
	}
	assert.ElementsMatch(t, []string{oids["model"], oids["data"], oids["stray"], oids["feature"]}, got)
	assert.IsIncreasing(t, got)
}

func TestTree(t *testing.T) {
	repo, oids := newTestRepository(t)

	entries, err := repo.Tree("main", "")
	require.NoError(t, err)

	byName := map[string]TreeEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	require.Len(t, byName, 4)

	assert.Equal(t, "tree", byName["data"].Type)
	assert.Equal(t, "dir", byName["data"].Mode)
	assert.False(t, byName["data"].IsLFS)

	assert.Equal(t, "blob", byName["README.md"].Type)
	assert.False(t, byName["README.md"].IsLFS)

	model := byName["model.bin"]
	assert.True(t, model.IsLFS)
	assert.Equal(t, oids["model"], model.LFSOid)
	assert.Equal(t, int64(len("model weights")), model.LFSSize)
	assert.Equal(t, "regular", model.Mode)

	entries, err = repo.Tree("main", "data/raw")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, []string{"data/raw/copy", "data/raw/readme.txt"}, e.Path)
	}

	_, err = repo.Tree("main", "model.bin")
	assert.True(t, IsNotFoundError(err))
}
