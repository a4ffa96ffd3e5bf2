package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/extract"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/storage"
	"github.com/pfrederiksen/permit-scraper/internal/store"
)

func newExtractCmd() *cobra.Command {
	var (
		file    string
		number  string
		pageURL string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "extract --file <page.html>",
		Short: "Extract a permit from a saved detail page",
		Long: `Run the extractor over a detail page saved to disk. The permit number
comes from --permit, the PermitNumber query of --url, or the page itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening page: %w", err)
			}
			defer f.Close()

			target := pageURL
			switch {
			case target == "" && number != "":
				target = fmt.Sprintf(cfg.Portal.DetailURLTemplate, url.QueryEscape(number))
			case target == "":
				abs, err := filepath.Abs(file)
				if err != nil {
					return err
				}
				target = (&url.URL{Scheme: "file", Path: abs}).String()
			}

			doc, err := browser.NewDocument(f, target)
			if err != nil {
				return err
			}
			defer doc.Close()

			opts := extractOptions(cfg)
			opts.Sleep = browser.NoSleep
			rec := extract.New(doc, opts).Extract(cmd.Context(), target)

			var history []permit.Change
			if save && rec.Identified() {
				db, err := store.Open(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				if history, err = db.Save(cmd.Context(), rec); err != nil {
					return err
				}
			}

			if err := WriteRecord(cmd.OutOrStdout(), rec, history, format()); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if len(rec.ExtractionErrors) > 0 {
				return &ExitCodeError{Code: ExitExtractionErrors}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Saved detail page (required)")
	cmd.Flags().StringVar(&number, "permit", "", "Permit number the page belongs to")
	cmd.Flags().StringVar(&pageURL, "url", "", "URL the page was saved from")
	cmd.Flags().BoolVar(&save, "save", false, "Store the extracted record")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newShowCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "show <permit-number>",
		Short: "Show a stored permit",
		Long: `Show a permit from the store. Permits that were never stored are
looked up among the JSON exports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := db.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				rec, err = latestExport(cfg.ExportDir, args[0])
			}
			if err != nil {
				return err
			}

			var changes []permit.Change
			if history {
				if changes, err = db.StatusHistory(cmd.Context(), rec.PermitNumber); err != nil {
					return err
				}
			}
			return WriteRecord(cmd.OutOrStdout(), rec, changes, format())
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Include the change history")
	return cmd
}

func latestExport(dir, number string) (*permit.Record, error) {
	files, err := storage.New(dir)
	if err != nil {
		return nil, err
	}
	rec, err := files.Latest(number)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("permit %s: %w", number, store.ErrNotFound)
	}
	logger.Debug("Permit loaded from export", logger.Fields{"permit_number": number, "dir": files.Dir()})
	return rec, nil
}

func newListCmd() *cobra.Command {
	var (
		opts  store.ListOptions
		order string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored permits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sortOrder, err := parseSortOrder(order)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			sortRecords(records, sortOrder)
			return WriteList(cmd.OutOrStdout(), records, format())
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only permits with this status")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "Minimum completeness score")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of permits (0 for all)")
	cmd.Flags().StringVar(&order, "sort", string(SortByNumber), "Sort order: number, issued, score or status")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>...",
		Short: "Load JSON exports into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range args {
				rec, err := storage.Load(path)
				if err != nil {
					return err
				}
				changes, err := db.Save(cmd.Context(), rec)
				if err != nil {
					return fmt.Errorf("importing %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d changes)\n", rec.PermitNumber, len(changes))
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <permit-number>",
		Short: "Delete a stored permit and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
