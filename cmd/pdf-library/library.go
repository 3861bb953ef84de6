// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/internal/pdffetch"
	"github.com/pdiddy/pdf-library/internal/pdftext"
	"github.com/pdiddy/pdf-library/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect and manage the PDF library",
	Long: `Library works on the shared PDF library: list and search records, show
statistics, copy a PDF out under a readable name, delete records, check a
PDF's text against its DOI, and export the index.`,
}

// --- list subcommand ---

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List library records",
	RunE:  runLibraryList,
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	query, _ := cmd.Flags().GetString("query")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	idx, err := loadIndex()
	if err != nil {
		return err
	}
	records, err := library.Filter(idx.List(), library.Query{Status: status, Text: query})
	if err != nil {
		return err
	}

	if jsonOutput {
		return library.ExportWriter(records, library.ExportJSON, os.Stdout)
	}
	if len(records) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-7s  %-14s  %-30s  %s\n", "ID", "Status", "Source", "DOI/Key", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range records {
		ref := r.DOI
		if ref == "" {
			ref = r.Key
		}
		source := string(r.Source)
		if r.Status != types.StatusFound {
			source = string(r.MissingReason)
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-7s  %-14s  %-30s  %s\n",
			r.ID, r.Status, clip(source, 14), clip(ref, 30), clip(r.Title, 40))
	}
	fmt.Fprintf(os.Stdout, "\n%d records\n", len(records))
	return nil
}

// --- stats subcommand ---

var libraryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadIndex()
		if err != nil {
			return err
		}
		s := library.ComputeStats(idx.List())
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		fmt.Printf("Records:        %d\n", s.Total)
		fmt.Printf("Found:          %d\n", s.Found)
		fmt.Printf("Missing:        %d\n", s.Missing)
		fmt.Printf("Managed files:  %d\n", s.ManagedFiles)
		fmt.Printf("External refs:  %d\n", s.ExternalRefs)
		return nil
	},
}

// --- get subcommand ---

var libraryGetCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Copy a record's PDF out of the library",
	Long: `Get copies the PDF of a found record into --dest, named
<year>_<database>_<short-title>.pdf. Year and database missing from the
record are taken from the entries file given with --entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibraryGet,
}

func runLibraryGet(cmd *cobra.Command, args []string) error {
	dest, _ := cmd.Flags().GetString("dest")
	entries, err := optionalEntries(cmd)
	if err != nil {
		return err
	}

	rec, err := openLibrary().FileFor(args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	target := filepath.Join(dest, library.DownloadName(rec, entries))
	if err := copyFile(rec.PDFPath, target); err != nil {
		return err
	}
	fmt.Println(target)
	return nil
}

// --- delete subcommand ---

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Remove a record and its managed PDF",
	Long: `Delete removes a record from the index. The PDF is deleted as well when
the library owns it, unless --keep-file is set. Files referenced in place
(local files) are never deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep-file")
		res, err := openLibrary().Delete(args[0], !keep)
		if err != nil {
			return err
		}
		log.Info("pdf record deleted", "record_id", res.RecordID, "removed_file", res.RemovedFile)
		if res.RemovedFile {
			fmt.Printf("Deleted record %s and %s\n", res.RecordID, res.RemovedPath)
		} else {
			fmt.Printf("Deleted record %s\n", res.RecordID)
		}
		return nil
	},
}

// --- inspect subcommand ---

var libraryInspectCmd = &cobra.Command{
	Use:   "inspect <record-id>",
	Short: "Compare the DOI printed in a PDF with its record",
	Long: `Inspect extracts text from the first pages of a record's PDF and lists
the DOIs it mentions, reporting whether the record's DOI is among them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := openLibrary().FileFor(args[0])
		if err != nil {
			return err
		}
		rep, err := pdftext.Inspect(rec.PDFPath, rec.DOI)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		fmt.Printf("File:        %s (%d pages)\n", rep.Path, rep.Pages)
		fmt.Printf("Record DOI:  %s\n", orDash(rep.RecordDOI))
		fmt.Printf("Text DOIs:   %s\n", orDash(strings.Join(rep.TextDOIs, ", ")))
		switch {
		case rep.RecordDOI == "":
			fmt.Println("Result:      record has no DOI")
		case rep.Match:
			fmt.Println("Result:      match")
		case rep.RawMatch:
			fmt.Println("Result:      DOI found in raw bytes only")
		default:
			fmt.Println("Result:      MISMATCH")
		}
		return nil
	},
}

// --- export subcommand ---

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library index as JSON, YAML or SQLite",
	Long: `Export writes every record (or those matching --status/--query) to --out.
JSON and YAML go to stdout when --out is omitted; SQLite requires --out.`,
	RunE: runLibraryExport,
}

func runLibraryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	status, _ := cmd.Flags().GetString("status")
	query, _ := cmd.Flags().GetString("query")

	f := library.ExportFormat(strings.ToLower(format))
	switch f {
	case library.ExportJSON, library.ExportYAML, library.ExportSQLite:
	default:
		return fmt.Errorf("unsupported format %q: use json, yaml or sqlite", format)
	}

	idx, err := loadIndex()
	if err != nil {
		return err
	}
	records, err := library.Filter(idx.List(), library.Query{Status: status, Text: query})
	if err != nil {
		return err
	}

	if out == "" {
		if f == library.ExportSQLite {
			return fmt.Errorf("--out is required for sqlite exports")
		}
		return library.ExportWriter(records, f, os.Stdout)
	}
	if err := library.ExportFile(context.Background(), records, f, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", len(records), out)
	return nil
}

// --- shared helpers ---

func loadIndex() (*library.Index, error) {
	idx, err := openLibrary().Load()
	if err != nil {
		return nil, err
	}
	if w := idx.LoadWarning(); w != nil {
		log.Warn("pdf library index was unreadable; showing an empty library", "error", w)
	}
	return idx, nil
}

func optionalEntries(cmd *cobra.Command) ([]types.BibEntry, error) {
	path, _ := cmd.Flags().GetString("entries")
	if path == "" {
		return nil, nil
	}
	return pdffetch.ReadEntries(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	libraryListCmd.Flags().String("status", "all", "filter by status: all, found or missing")
	libraryListCmd.Flags().String("query", "", "case-insensitive text filter on DOI, title, path, URL, key and source")
	libraryListCmd.Flags().Bool("json", false, "output records as JSON")

	libraryStatsCmd.Flags().Bool("json", false, "output statistics as JSON")

	libraryGetCmd.Flags().String("dest", ".", "directory to copy the PDF into")
	libraryGetCmd.Flags().String("entries", "", "entries file (JSON or YAML) used for naming")

	libraryDeleteCmd.Flags().Bool("keep-file", false, "keep the managed PDF on disk")

	libraryInspectCmd.Flags().Bool("json", false, "output the report as JSON")

	libraryExportCmd.Flags().String("format", "json", "export format: json, yaml or sqlite")
	libraryExportCmd.Flags().String("out", "", "output file (default: stdout for json and yaml)")
	libraryExportCmd.Flags().String("status", "all", "export only records with this status")
	libraryExportCmd.Flags().String("query", "", "export only records matching this text")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryStatsCmd)
	libraryCmd.AddCommand(libraryGetCmd)
	libraryCmd.AddCommand(libraryDeleteCmd)
	libraryCmd.AddCommand(libraryInspectCmd)
	libraryCmd.AddCommand(libraryExportCmd)

	rootCmd.AddCommand(libraryCmd)
}
