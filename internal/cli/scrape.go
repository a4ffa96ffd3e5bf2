package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/permit-scraper/internal/config"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/notifier"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
	"github.com/pfrederiksen/permit-scraper/internal/scraper"
	"github.com/pfrederiksen/permit-scraper/internal/storage"
	"github.com/pfrederiksen/permit-scraper/internal/store"
)

func newScrapeCmd() *cobra.Command {
	var noExport bool

	cmd := &cobra.Command{
		Use:   "scrape <permit-number>...",
		Short: "Log in to the portal and scrape permits",
		Long: `Scrape each permit in turn, store the record, write a JSON export
and send alerts for status changes, flagged job values and extraction
errors. Exits 2 when any record carries extraction errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, args, noExport)
		},
	}
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Do not write JSON export files")
	return cmd
}

// pipeline handles each scraped record.
type pipeline struct {
	cfg    *config.Config
	db     *store.Store
	files  *storage.Storage
	alerts notifier.Notifier
}

func runScrape(cmd *cobra.Command, numbers []string, noExport bool) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	recorder, flush := newRecorder(ctx, cfg)
	defer flush()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	p := &pipeline{cfg: cfg, db: db}
	if !noExport {
		if p.files, err = storage.New(cfg.ExportDir); err != nil {
			return fmt.Errorf("initializing export storage: %w", err)
		}
	}
	if p.alerts, err = newNotifier(cfg, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("configuring alerts: %w", err)
	}

	run, err := db.StartRun(ctx, len(numbers))
	if err != nil {
		return err
	}

	page, err := newSession(cfg)
	if err != nil {
		return p.abort(ctx, run, err)
	}
	s, err := scraper.Open(ctx, page, scraperOptions(cfg, recorder))
	if err != nil {
		return p.abort(ctx, run, err)
	}
	defer s.Close()

	result := &ScrapeResult{
		RunID:     run.ID,
		CheckedAt: run.StartedAt,
		Requested: len(numbers),
	}
	withErrors := false

	for _, number := range numbers {
		if ctx.Err() != nil {
			result.Unattempted = append(result.Unattempted, number)
			run.Failed++
			continue
		}

		rec, err := s.ScrapePermit(ctx, number)
		if err != nil {
			run.Failed++
			result.Permits = append(result.Permits, PermitResult{
				Record: permit.ToFlat(permit.New(number)),
				Error:  err.Error(),
			})
			continue
		}

		pr, ok := p.process(ctx, number, rec)
		if ok {
			run.Succeeded++
		} else {
			run.Failed++
		}
		if len(rec.ExtractionErrors) > 0 {
			withErrors = true
		}
		result.Permits = append(result.Permits, pr)
	}

	if err := db.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Recording run failed", logger.Fields{"run_id": run.ID}, err)
	}
	result.Succeeded, result.Failed = run.Succeeded, run.Failed

	logger.Info("Scrape run finished", logger.Fields{
		"run_id":    run.ID,
		"requested": run.Requested,
		"succeeded": run.Succeeded,
		"failed":    run.Failed,
		"status":    run.Status,
	})
	if flagVerbose {
		logger.Debug("Metrics snapshot", logger.Fields{"metrics": logger.GetMetricsSnapshot()})
	}

	if err := WriteScrapeResult(cmd.OutOrStdout(), result, format(), flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if withErrors {
		return &ExitCodeError{Code: ExitExtractionErrors}
	}
	return nil
}

// abort closes out a run that never got to scrape anything.
func (p *pipeline) abort(ctx context.Context, run *store.Run, cause error) error {
	run.Failed = run.Requested
	if err := p.db.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("Recording run failed", logger.Fields{"run_id": run.ID}, err)
	}
	notify(ctx, p.alerts, notifier.Alert{
		Subject:  "Portal session failed",
		Message:  cause.Error(),
		Severity: notifier.SeverityCritical,
	})
	return fmt.Errorf("opening portal session: %w", cause)
}

// process stores, alerts on and exports the record scraped for number. It
// reports whether the record was extracted cleanly and stored.
func (p *pipeline) process(ctx context.Context, number string, rec *permit.Record) (PermitResult, bool) {
	pr := PermitResult{Record: permit.ToFlat(rec)}
	ok := len(rec.ExtractionErrors) == 0
	log := logger.With(logger.Fields{"permit_number": number})

	if len(rec.ExtractionErrors) > 0 {
		name := rec.PermitNumber
		if !rec.Identified() {
			name = number
		}
		notify(ctx, p.alerts, notifier.ScrapeFailed(name, rec.ExtractionErrors))
	}

	if rec.Identified() {
		changes, err := p.db.Save(ctx, rec)
		if err != nil {
			log.Error("Saving permit failed", nil, err)
			pr.Error = err.Error()
			ok = false
		}
		pr.Changes = changes
		if c, found := permit.StatusChange(changes); found && p.cfg.Alerts.StatusChanges {
			notify(ctx, p.alerts, notifier.StatusChanged(c))
		}
	} else {
		ok = false
	}

	if alert, flagged := notifier.JobValueFlagged(rec, quality.Validate(rec, p.cfg.Thresholds)); flagged {
		notify(ctx, p.alerts, alert)
	}

	if p.files != nil && rec.Identified() {
		path, err := p.files.Export(rec)
		if err != nil {
			log.Error("Exporting permit failed", nil, err)
		} else {
			pr.ExportPath = path
		}
	}

	log.Debug("Processed permit", logger.Fields{
		"changes":  len(pr.Changes),
		"exported": pr.ExportPath != "",
	})
	return pr, ok
}
