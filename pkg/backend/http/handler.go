package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wzshiming/lfsscan/pkg/repository"
	"github.com/wzshiming/lfsscan/pkg/scanner"
)

// OpenFunc opens the repository with the given name.
type OpenFunc func(name string) (*repository.Repository, error)

// Handler serves the LFS pointer API.
type Handler struct {
	rootDir string
	open    OpenFunc

	scanner *scanner.Scanner

	root *mux.Router

	next http.Handler
}

type Option func(*Handler)

// WithRootDir serves the bare repositories found under rootDir.
func WithRootDir(rootDir string) Option {
	return func(h *Handler) {
		h.rootDir = rootDir
	}
}

// WithOpener replaces the way repositories are looked up by name.
func WithOpener(open OpenFunc) Option {
	return func(h *Handler) {
		h.open = open
	}
}

// WithScanner sets the scanner used for pointer listings.
func WithScanner(s *scanner.Scanner) Option {
	return func(h *Handler) {
		h.scanner = s
	}
}

// WithNext sets the next http.Handler to call if the request is not handled by this handler.
func WithNext(next http.Handler) Option {
	return func(h *Handler) {
		h.next = next
	}
}

// NewHandler creates a new Handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		rootDir: "./data",
		root:    mux.NewRouter(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.open == nil {
		h.open = h.openFromRootDir
	}
	if h.scanner == nil {
		h.scanner = scanner.NewScanner()
	}

	h.register()
	return h
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) register() {
	h.registryLFS(h.root)
	h.registryRepositories(h.root)

	if h.next != nil {
		h.root.NotFoundHandler = h.next
	}
}

func (h *Handler) openFromRootDir(name string) (*repository.Repository, error) {
	repoPath := repository.ResolvePath(h.rootDir, name)
	if repoPath == "" {
		return nil, repository.ErrRepositoryNotExists
	}
	return repository.Open(repoPath)
}

// openRepository writes the error response itself and returns nil when
// the repository can't be opened.
func (h *Handler) openRepository(w http.ResponseWriter, name string) *repository.Repository {
	repo, err := h.open(name)
	if err == nil {
		return repo
	}
	if errors.Is(err, repository.ErrRepositoryNotExists) {
		h.JSON(w, fmt.Errorf("repository %q not found", name), http.StatusNotFound)
		return nil
	}
	h.JSON(w, fmt.Errorf("failed to open repository %q: %v", name, err), http.StatusInternalServerError)
	return nil
}

func (h *Handler) JSON(w http.ResponseWriter, data any, sc int) {
	header := w.Header()
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json; charset=utf-8")
	}

	if sc >= http.StatusBadRequest {
		header.Del("Content-Length")
		header.Set("X-Content-Type-Options", "nosniff")
	}

	if sc != 0 {
		w.WriteHeader(sc)
	}

	if data == nil {
		_, _ = w.Write([]byte("{}"))
		return
	}

	if err, ok := data.(error); ok {
		data = struct {
			Error string `json:"error"`
		}{
			Error: err.Error(),
		}
	}

	_ = json.NewEncoder(w).Encode(data)
}
