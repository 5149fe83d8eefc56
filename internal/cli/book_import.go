package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mrlokans/kompanion/internal/config"
	"github.com/mrlokans/kompanion/internal/database/books"
	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/library"
	"github.com/mrlokans/kompanion/internal/storage"
)

// BookImportCommand adds book files from disk to the shelf.
type BookImportCommand struct {
	Path        string
	DryRun      bool
	Verbose     bool
	Database    config.Database
	BlobStorage config.BlobStorage

	out io.Writer
}

func NewBookImportCommand(cfg *config.Config) *BookImportCommand {
	return &BookImportCommand{
		Database:    cfg.Database,
		BlobStorage: cfg.BlobStorage,
		out:         os.Stdout,
	}
}

func (cmd *BookImportCommand) ParseFlags(args []string) error {
	flags := flag.NewFlagSet("book-import", flag.ContinueOnError)

	flags.StringVar(&cmd.Path, "path", "", "Book file or directory to import recursively (required)")
	flags.BoolVar(&cmd.DryRun, "dry-run", false, "List what would be imported without storing anything")
	flags.BoolVar(&cmd.Verbose, "verbose", false, "Print every file as it is processed")
	databaseFlags(flags, &cmd.Database)

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s book-import [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import EPUB, PDF, MOBI, FB2, CBZ, DjVu and TXT files into the library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s book-import -path ~/Books\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s book-import -path ./dune.epub -verbose\n", os.Args[0])
	}

	if err := flags.Parse(args); err != nil {
		return err
	}
	if cmd.Path == "" {
		flags.Usage()
		return fmt.Errorf("path is required")
	}
	return nil
}

// collect returns every file under Path with a known book extension.
func (cmd *BookImportCommand) collect() ([]string, error) {
	var files []string
	err := filepath.WalkDir(cmd.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, err := library.FormatFromFilename(path); err == nil {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cmd.Path, err)
	}
	return files, nil
}

func (cmd *BookImportCommand) Run() error {
	ctx := context.Background()

	files, err := cmd.collect()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Found %d book files in %s\n", len(files), cmd.Path)

	if cmd.DryRun {
		for i, f := range files {
			fmt.Fprintf(cmd.out, "%d. %s\n", i+1, f)
		}
		fmt.Fprintln(cmd.out, "\nDry run complete. Use without -dry-run to import.")
		return nil
	}

	db, err := openDatabase(cmd.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := openStorage(ctx, cmd.BlobStorage, db)
	if err != nil {
		return err
	}
	defer storage.Close(blobs)

	shelf := library.NewShelf(blobs, books.NewRepository(db.DB))

	var imported, skipped int
	var importErrors []string
	for _, path := range files {
		book, err := cmd.importFile(ctx, shelf, path)
		switch {
		case errors.Is(err, library.ErrBookExists):
			skipped++
			if cmd.Verbose {
				fmt.Fprintf(cmd.out, "  [SKIP] %s already in library\n", path)
			}
		case err != nil:
			importErrors = append(importErrors, fmt.Sprintf("%s: %v", path, err))
		default:
			imported++
			if cmd.Verbose {
				fmt.Fprintf(cmd.out, "  [OK] %q by %s\n", book.Title, book.Author)
			}
		}
	}

	fmt.Fprintln(cmd.out, "\n=== Import Summary ===")
	fmt.Fprintf(cmd.out, "Imported: %d\n", imported)
	fmt.Fprintf(cmd.out, "Already present: %d\n", skipped)
	if len(importErrors) > 0 {
		fmt.Fprintf(cmd.out, "\n%d errors occurred:\n", len(importErrors))
		for _, msg := range importErrors {
			fmt.Fprintf(cmd.out, "  [ERROR] %s\n", msg)
		}
		return fmt.Errorf("%d of %d files failed to import", len(importErrors), len(files))
	}
	return nil
}

func (cmd *BookImportCommand) importFile(ctx context.Context, shelf *library.Shelf, path string) (*entities.Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return shelf.Store(ctx, f, filepath.Base(path), library.Metadata{})
}
