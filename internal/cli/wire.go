package cli

import (
	"context"
	"io"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/config"
	"github.com/pfrederiksen/permit-scraper/internal/extract"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/metrics"
	"github.com/pfrederiksen/permit-scraper/internal/notifier"
	"github.com/pfrederiksen/permit-scraper/internal/scraper"
)

// extractOptions builds extractor options from cfg.
func extractOptions(cfg *config.Config) extract.Options {
	opts := extract.DefaultOptions()
	opts.Username = cfg.Portal.Username
	opts.Password = cfg.Portal.Password
	opts.LabelSelector = cfg.Extraction.LabelSelector
	opts.FeeSelector = cfg.Extraction.FeeSelector
	opts.InspectionSelector = cfg.Extraction.InspectionSelector
	opts.RelatedSelector = cfg.Extraction.RelatedSelector
	opts.ExpandPhrases = cfg.Extraction.ExpandPhrases
	opts.NavigationSettle = cfg.Extraction.NavigationSettle.Std()
	opts.ExpansionSettle = cfg.Extraction.ExpansionSettle.Std()
	opts.Thresholds = cfg.Thresholds
	return opts
}

func scraperOptions(cfg *config.Config, rec metrics.Recorder) scraper.Options {
	return scraper.Options{
		DetailURLTemplate: cfg.Portal.DetailURLTemplate,
		Extract:           extractOptions(cfg),
		Metrics:           rec,
	}
}

func newSession(cfg *config.Config) (*browser.Session, error) {
	return browser.NewSession(browser.SessionOptions{
		LoginURL:    cfg.Portal.LoginURL,
		Timeout:     cfg.Portal.Timeout.Std(),
		LoginSettle: cfg.Extraction.LoginSettle.Std(),
	})
}

// newRecorder returns the metrics recorder for a run and a function that
// flushes it. Metrics always go to the in-process tracker; they are also
// exported over OTLP when an endpoint is configured.
func newRecorder(ctx context.Context, cfg *config.Config) (metrics.Recorder, func()) {
	local := metrics.NewLogRecorder(nil)
	if cfg.Metrics.OTLPEndpoint == "" {
		return local, func() {}
	}

	provider, err := metrics.Setup(ctx, cfg.Metrics.ServiceName, cfg.Metrics.OTLPEndpoint)
	if err != nil {
		logger.Warn("Metric export disabled", logger.Fields{"endpoint": cfg.Metrics.OTLPEndpoint, "error": err.Error()})
		return local, func() {}
	}

	otel := metrics.NewOTelRecorder(provider.Meter(cfg.Metrics.ServiceName))
	return metrics.Multi{local, otel}, func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Flushing metrics failed", logger.Fields{"error": err.Error()})
		}
	}
}

// newNotifier selects alert channels from cfg. With none configured, or in
// dry-run mode, alerts are printed to w.
func newNotifier(cfg *config.Config, w io.Writer) (notifier.Notifier, error) {
	a := cfg.Alerts
	if a.DryRun {
		return notifier.NewDryRunNotifier(w), nil
	}

	var channels notifier.Multi
	if a.SlackWebhookURL != "" {
		slack, err := notifier.NewSlackNotifier(a.SlackWebhookURL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, slack)
	}
	if a.TelegramBotToken != "" {
		tg, err := notifier.NewTelegramNotifier(a.TelegramBotToken, a.TelegramChatID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	if len(channels) == 0 {
		return notifier.NewDryRunNotifier(w), nil
	}
	return channels, nil
}

func notify(ctx context.Context, n notifier.Notifier, alert notifier.Alert) {
	if err := n.Notify(ctx, alert); err != nil {
		logger.Error("Sending alert failed", logger.Fields{"subject": alert.Subject}, err)
	}
}
