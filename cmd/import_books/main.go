package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"library-catalog/library"

	"github.com/spf13/cobra"
)

// import_books bulk-registers books from a catalog file with one
// "title;author;publisher;year;copies" record per line. Lines starting with
// '#' are comments.
func main() {
	if err := newImportCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd(out io.Writer) *cobra.Command {
	cfg, cfgErr := library.LoadConfig()
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "import_books <catalog-file>",
		Short:         "Register every book listed in a catalog file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			lvl, err := library.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("reading catalog file: %w", err)
			}
			defer f.Close()

			records, errs := parseCatalog(f)
			for _, e := range errs {
				fmt.Fprintf(out, "Warning: %v, skipping\n", e)
			}
			if dryRun {
				fmt.Fprintf(out, "%d books would be imported\n", len(records))
				return nil
			}

			manager, err := library.NewLibraryManager(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening catalog: %w", err)
			}
			err = importBooks(out, manager, records)
			return errors.Join(err, manager.Close())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the catalog files")
	f.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: files or sqlite")
	f.BoolVar(&dryRun, "dry-run", false, "only parse the catalog file")
	return cmd
}

// parseCatalog reads every record of r; malformed lines are reported and skipped.
func parseCatalog(r io.Reader) ([]library.BookFields, []error) {
	var (
		records []library.BookFields
		errs    []error
		lineNo  int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) != 5 {
			errs = append(errs, fmt.Errorf("line %d: want 5 fields, got %d", lineNo, len(parts)))
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: bad year %q", lineNo, parts[3]))
			continue
		}
		copies, err := strconv.Atoi(strings.TrimSpace(parts[4]))
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: bad copy count %q", lineNo, parts[4]))
			continue
		}
		records = append(records, library.BookFields{
			Title:       strings.TrimSpace(parts[0]),
			Author:      strings.TrimSpace(parts[1]),
			Publisher:   strings.TrimSpace(parts[2]),
			Year:        year,
			TotalCopies: copies,
		})
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, err)
	}
	return records, errs
}

func importBooks(out io.Writer, manager *library.LibraryManager, records []library.BookFields) error {
	successCount := 0
	errorCount := 0

	for _, rec := range records {
		fmt.Fprintf(out, "Importing: %s by %s... ", rec.Title, rec.Author)

		bookID, err := manager.AddBook(rec)
		switch {
		case errors.Is(err, library.ErrPersistence):
			// registered in memory; the final save on Close retries
			fmt.Fprintf(out, "SUCCESS (ID: %d), not yet saved: %v\n", bookID, err)
		case errors.Is(err, library.ErrCapacityExceeded):
			fmt.Fprintln(out, "ERROR - catalog is full")
			errorCount++
			fmt.Fprintf(out, "\nImport stopped: %d imported, %d failed\n", successCount, errorCount)
			return err
		case err != nil:
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		default:
			fmt.Fprintf(out, "SUCCESS (ID: %d)\n", bookID)
		}
		successCount++
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-5s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 87))
		for _, book := range manager.GetAllBooks() {
			fmt.Fprintf(out, "%-5d %-50s %-30s\n", book.ID, library.Truncate(book.Title, 50), library.Truncate(book.Author, 30))
		}
	}
	return nil
}
