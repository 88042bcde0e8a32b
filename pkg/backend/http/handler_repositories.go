package backend

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

func (h *Handler) registryRepositories(r *mux.Router) {
	// Use {refpath:.*} to capture both ref and path since branches can contain '/'
	r.HandleFunc("/api/repositories/{repo:.+}.git/tree/{refpath:.*}", h.handleTree).Methods(http.MethodGet)
	r.HandleFunc("/api/repositories/{repo:.+}.git/tree", h.handleTree).Methods(http.MethodGet)
	r.HandleFunc("/api/repositories/{repo:.+}.git/branches", h.handleBranches).Methods(http.MethodGet)
}

// handleTree handles requests to list directory contents
func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	repoName := vars["repo"]
	refpath := vars["refpath"]

	repo := h.openRepository(w, repoName)
	if repo == nil {
		return
	}

	ref, path, err := repo.SplitRevisionAndPath(refpath)
	if err != nil {
		h.JSON(w, err, http.StatusNotFound)
		return
	}

	entries, err := repo.Tree(ref, path)
	if err != nil {
		h.scanError(w, repoName, err)
		return
	}

	h.JSON(w, entries, http.StatusOK)
}

func (h *Handler) handleBranches(w http.ResponseWriter, r *http.Request) {
	repoName := mux.Vars(r)["repo"]

	repo := h.openRepository(w, repoName)
	if repo == nil {
		return
	}

	branches, err := repo.Branches()
	if err != nil {
		h.JSON(w, fmt.Errorf("failed to list branches of %q: %v", repoName, err), http.StatusInternalServerError)
		return
	}
	if branches == nil {
		branches = []string{}
	}
	h.JSON(w, branches, http.StatusOK)
}
