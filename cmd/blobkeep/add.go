package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files as blobs",
	Long: `Import local files into blobkeep storage.

Each file is stored under its base name unless --key is given. Keys are
flat: with -r, nested paths are joined with '_' to form the key.

Examples:
  # Add a single file
  blobkeep add /path/to/report.pdf

  # Add under a different key
  blobkeep add --key latest.pdf /path/to/report-2024.pdf

  # Add a directory recursively with a key prefix
  blobkeep add -r --prefix assets- /path/to/assets

  # Skip existing blobs
  blobkeep add --no-clobber /path/to/file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addKey       string
	addPrefix    string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
)

func init() {
	addCmd.Flags().StringVarP(&addKey, "key", "k", "", "key for the blob (single file only)")
	addCmd.Flags().StringVarP(&addPrefix, "prefix", "p", "", "prefix prepended to every generated key")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip existing blobs instead of replacing")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(addCmd)
}

// fileEntry is a file to import and the key it is stored under.
type fileEntry struct {
	sourcePath string
	key        string
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if addKey != "" && len(args) > 1 {
		return errors.New("--key needs exactly one file")
	}

	// Collect and validate every key before touching storage
	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addPrefix)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}
	if addKey != "" && len(files) == 1 {
		files[0].key = addKey
	}
	for _, entry := range files {
		if err := blobkeep.ValidateKey(entry.key); err != nil {
			return fmt.Errorf("add %s: %w", entry.sourcePath, err)
		}
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	added := 0
	replaced := 0
	skipped := 0

	for _, entry := range files {
		if addNoClobber {
			_, statErr := a.service.Stat(ctx, entry.key)
			if statErr == nil {
				skipped++
				if !addQuiet {
					slog.Info("skipped (exists)", "key", entry.key)
				}
				continue
			}
			if !errors.Is(statErr, blobkeep.ErrNotFound) {
				return fmt.Errorf("stat %s: %w", entry.key, statErr)
			}
		}

		f, openErr := os.Open(entry.sourcePath)
		if openErr != nil {
			return fmt.Errorf("open %s: %w", entry.sourcePath, openErr)
		}

		info, created, putErr := a.service.Put(ctx, entry.key, f)
		_ = f.Close()

		if putErr != nil {
			return fmt.Errorf("add %s: %w", entry.key, putErr)
		}

		if created {
			added++
		} else {
			replaced++
		}
		if !addQuiet {
			slog.Info("added", "key", entry.key, "size", info.Size, "etag", info.ETag, "created", created)
		}
	}

	slog.Info("add complete", "added", added, "replaced", replaced, "skipped", skipped)
	return nil
}

// collectFiles gathers files from a path, optionally recursively, and
// derives the key each one is stored under.
func collectFiles(path string, recursive bool, keyPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []fileEntry{{sourcePath: path, key: keyPrefix + filepath.Base(path)}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			key:        keyPrefix + strings.ReplaceAll(filepath.ToSlash(relPath), "/", "_"),
		})
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}
