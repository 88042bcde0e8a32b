package backend

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wzshiming/lfsscan/pkg/repository"
	"github.com/wzshiming/lfsscan/pkg/scanner"
	"github.com/wzshiming/lfsscan/pkg/treefilter"
)

func (h *Handler) registryLFS(r *mux.Router) {
	r.HandleFunc("/api/repositories/{repo:.+}.git/lfs/pointers", h.handlePointers).Methods(http.MethodGet)
	r.HandleFunc("/api/repositories/{repo:.+}.git/lfs/pointers/{ref:.+}", h.handlePointers).Methods(http.MethodGet)
	r.HandleFunc("/api/repositories/{repo:.+}.git/lfs/objects", h.handleObjects).Methods(http.MethodGet)
}

// PointersResponse is the body of a pointer listing.
type PointersResponse struct {
	Commit   string                   `json:"commit"`
	Cached   bool                     `json:"cached"`
	Pointers []repository.PointerFile `json:"pointers"`
}

// handlePointers lists the pointer files of a revision.
// Query parameters: path limits the listing to a directory,
// recursive=false only looks at that directory itself.
func (h *Handler) handlePointers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repoName := vars["repo"]

	recursive := true
	if v := r.URL.Query().Get("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.JSON(w, fmt.Errorf("invalid recursive parameter %q", v), http.StatusBadRequest)
			return
		}
		recursive = b
	}

	repo := h.openRepository(w, repoName)
	if repo == nil {
		return
	}

	res := h.scanner.ScanOne(r.Context(), scanner.Request{
		Revision:  vars["ref"],
		Path:      r.URL.Query().Get("path"),
		Recursive: recursive,
	}, scanner.Target{Name: repoName, Repo: repo})
	if res.Err != nil {
		h.scanError(w, repoName, res.Err)
		return
	}

	h.JSON(w, PointersResponse{
		Commit:   res.Scan.Commit,
		Cached:   res.Cached,
		Pointers: res.Scan.Pointers,
	}, http.StatusOK)
}

// handleObjects lists the unique LFS objects referenced from any branch.
func (h *Handler) handleObjects(w http.ResponseWriter, r *http.Request) {
	repoName := mux.Vars(r)["repo"]

	repo := h.openRepository(w, repoName)
	if repo == nil {
		return
	}

	pointers, err := repo.ScanLFSPointers(r.Context())
	if err != nil {
		h.scanError(w, repoName, err)
		return
	}
	h.JSON(w, pointers, http.StatusOK)
}

func (h *Handler) scanError(w http.ResponseWriter, repoName string, err error) {
	switch {
	case treefilter.IsObjectResolutionError(err):
		// A tree that references a missing or mistyped object is a broken repository.
		h.JSON(w, fmt.Errorf("repository %q is corrupt: %v", repoName, err), http.StatusInternalServerError)
	case repository.IsNotFoundError(err):
		h.JSON(w, err, http.StatusNotFound)
	default:
		h.JSON(w, fmt.Errorf("failed to scan repository %q: %v", repoName, err), http.StatusInternalServerError)
	}
}
