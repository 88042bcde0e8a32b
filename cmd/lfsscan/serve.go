package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/handlers"
	"github.com/spf13/cobra"

	backendhttp "github.com/wzshiming/lfsscan/pkg/backend/http"
	"github.com/wzshiming/lfsscan/pkg/index"
	"github.com/wzshiming/lfsscan/pkg/scanner"
)

var (
	serveAddr      string
	serveIndexFile string
	serveWorkers   int
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "", ":8080", "HTTP server address")
	serveCmd.Flags().StringVarP(&serveIndexFile, "index", "", "", "boltdb file caching scan results (default: <directory>/.lfsscan/index.db)")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "j", 4, "Number of concurrent scans")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [options] <directory>",
	Short: "Serve the LFS pointer API for the repositories in a directory",
	Long:  `Start an HTTP server that lists the LFS pointers of the bare repositories under a directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}

		indexFile := serveIndexFile
		if indexFile == "" {
			indexFile = filepath.Join(abs, ".lfsscan", "index.db")
		}
		idx, err := index.Open(indexFile)
		if err != nil {
			return err
		}
		defer idx.Close()

		logger := log.Default()
		var handler http.Handler
		handler = backendhttp.NewHandler(
			backendhttp.WithRootDir(abs),
			backendhttp.WithScanner(scanner.NewScanner(
				scanner.WithIndex(idx),
				scanner.WithMaxWorkers(serveWorkers),
				scanner.WithLogger(logger),
			)),
		)
		handler = handlers.CompressHandler(handler)
		handler = handlers.LoggingHandler(os.Stderr, handler)

		log.Printf("Starting HTTP server on %q for directory %q, index at %q", serveAddr, abs, indexFile)
		if err := http.ListenAndServe(serveAddr, handler); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
