package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wzshiming/lfsscan/pkg/index"
	"github.com/wzshiming/lfsscan/pkg/lfs"
	"github.com/wzshiming/lfsscan/pkg/repository"
	"github.com/wzshiming/lfsscan/pkg/scanner"
)

type scanConfig struct {
	ref        string
	path       string
	recursive  bool
	indexFile  string
	workers    int
	jsonOut    bool
	verbose    bool
	checkLocal bool
}

var scanFlags = scanConfig{}

func init() {
	scanCmd.Flags().StringVarP(&scanFlags.ref, "ref", "r", "", "Revision to scan (default: the default branch)")
	scanCmd.Flags().StringVarP(&scanFlags.path, "path", "", "", "Only scan this directory of the tree")
	scanCmd.Flags().BoolVarP(&scanFlags.recursive, "recursive", "R", true, "Descend into subdirectories")
	scanCmd.Flags().StringVarP(&scanFlags.indexFile, "index", "", "", "boltdb file caching scan results per commit")
	scanCmd.Flags().IntVarP(&scanFlags.workers, "workers", "j", 4, "Number of repositories scanned concurrently")
	scanCmd.Flags().BoolVarP(&scanFlags.jsonOut, "json", "", false, "Print results as JSON")
	scanCmd.Flags().BoolVarP(&scanFlags.verbose, "verbose", "v", false, "Log progress to stderr")
	scanCmd.Flags().BoolVarP(&scanFlags.checkLocal, "check-local", "", false, "Report whether each object is in the repository's local LFS store")

	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [options] <repository>...",
	Short: "List the LFS pointer files of repositories",
	Long:  `Walk the tree of a revision in each repository and list every blob that is a Git LFS pointer.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var logger *log.Logger
		if scanFlags.verbose {
			logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
		}
		return runScan(cmd.Context(), cmd.OutOrStdout(), logger, scanFlags, args)
	},
}

type scanOutput struct {
	Repository string          `json:"repository"`
	Commit     string          `json:"commit,omitempty"`
	Pointers   []pointerOutput `json:"pointers,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type pointerOutput struct {
	repository.PointerFile
	Local lfs.ObjectStatus `json:"local,omitempty"`
}

func runScan(ctx context.Context, out io.Writer, logger *log.Logger, cfg scanConfig, dirs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []scanner.Option{scanner.WithMaxWorkers(cfg.workers)}
	if logger != nil {
		opts = append(opts, scanner.WithLogger(logger))
	}
	if cfg.indexFile != "" {
		idx, err := index.Open(cfg.indexFile)
		if err != nil {
			return err
		}
		defer idx.Close()
		opts = append(opts, scanner.WithIndex(idx))
	}

	var targets []scanner.Target
	var stores []*lfs.LocalStore
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		repo, err := repository.Open(abs)
		if err != nil {
			return fmt.Errorf("failed to open repository %q: %w", dir, err)
		}
		targets = append(targets, scanner.Target{Name: abs, Repo: repo})
		stores = append(stores, lfs.LocalStoreFor(abs))
	}

	results := scanner.NewScanner(opts...).Scan(ctx, scanner.Request{
		Revision:  cfg.ref,
		Path:      cfg.path,
		Recursive: cfg.recursive,
	}, targets)

	failed := 0
	outputs := make([]scanOutput, 0, len(results))
	for i, res := range results {
		o := scanOutput{Repository: dirs[i]}
		if res.Err != nil {
			failed++
			o.Error = res.Err.Error()
		} else {
			o.Commit = res.Scan.Commit
			o.Pointers = make([]pointerOutput, 0, len(res.Scan.Pointers))
			for _, p := range res.Scan.Pointers {
				po := pointerOutput{PointerFile: p}
				if cfg.checkLocal {
					status, err := stores[i].Status(lfs.NewPointer(p.Oid, p.Size))
					if err != nil {
						return fmt.Errorf("failed to check local object %s: %w", p.Oid, err)
					}
					po.Local = status
				}
				o.Pointers = append(o.Pointers, po)
			}
		}
		outputs = append(outputs, o)
	}

	if cfg.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return err
		}
	} else {
		printScan(out, outputs, len(dirs) > 1)
	}

	if failed != 0 {
		return fmt.Errorf("%d of %d repositories failed to scan", failed, len(results))
	}
	return nil
}

func printScan(out io.Writer, outputs []scanOutput, withRepo bool) {
	for _, o := range outputs {
		prefix := ""
		if withRepo {
			prefix = o.Repository + ": "
		}
		if o.Error != "" {
			fmt.Fprintf(out, "%serror: %s\n", prefix, o.Error)
			continue
		}
		for _, p := range o.Pointers {
			var notes []string
			if !p.Tracked {
				notes = append(notes, "not tracked by .gitattributes")
			}
			if p.Local != "" && p.Local != lfs.ObjectPresent {
				notes = append(notes, "local object "+string(p.Local))
			}
			suffix := ""
			if len(notes) != 0 {
				suffix = " (" + strings.Join(notes, ", ") + ")"
			}
			fmt.Fprintf(out, "%s%s %8s %s%s\n", prefix, p.Oid, humanize.IBytes(uint64(p.Size)), p.Path, suffix)
		}
	}
}
