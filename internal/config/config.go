// Package config loads scraper configuration.
//
// Values are layered, later layers winning:
//  1. built-in defaults
//  2. <name>.json5
//  3. <name>.local.json5
//  4. environment variables, including any set in a .env file
//
// Credentials may be sealed with the secret package; they are opened with
// the passphrase in PERMIT_SECRET_KEY.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
	"github.com/pfrederiksen/permit-scraper/internal/scraper"
	"github.com/pfrederiksen/permit-scraper/internal/secret"
	"github.com/pfrederiksen/permit-scraper/internal/storage"
	"github.com/pfrederiksen/permit-scraper/internal/store"
)

// DefaultFile is the config file read when none is given.
const DefaultFile = "permit-scraper.json5"

// Environment variables.
const (
	EnvUsername      = "PERMIT_PORTAL_USERNAME"
	EnvPassword      = "PERMIT_PORTAL_PASSWORD"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvSlackWebhook  = "SLACK_WEBHOOK_URL"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChat  = "TELEGRAM_CHAT_ID"
	EnvOTLPEndpoint  = "OTLP_METRICS_ENDPOINT"
	EnvExportDir     = "EXPORT_DIR"
	EnvLogLevel      = "LOG_LEVEL"
	// EnvSecretKey holds the passphrase for values sealed with the secret
	// package.
	EnvSecretKey = "PERMIT_SECRET_KEY"
)

// Duration is a time.Duration read from a string such as "2s" or a number
// of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json5.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Portal holds the permit portal's location and credentials.
type Portal struct {
	LoginURL          string   `json:"login_url"`
	DetailURLTemplate string   `json:"detail_url_template"`
	Username          string   `json:"username"`
	Password          string   `json:"password"`
	Timeout           Duration `json:"timeout"`
}

// Extraction tunes how detail pages are read.
type Extraction struct {
	NavigationSettle   Duration `json:"navigation_settle"`
	ExpansionSettle    Duration `json:"expansion_settle"`
	LoginSettle        Duration `json:"login_settle"`
	ExpandPhrases      []string `json:"expand_phrases"`
	LabelSelector      string   `json:"label_selector"`
	FeeSelector        string   `json:"fee_selector"`
	InspectionSelector string   `json:"inspection_selector"`
	RelatedSelector    string   `json:"related_selector"`
}

// Alerts configures alert delivery. With no channel configured alerts are
// printed.
type Alerts struct {
	SlackWebhookURL  string `json:"slack_webhook_url"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
	DryRun           bool   `json:"dry_run"`
	StatusChanges    bool   `json:"status_changes"`
}

// Metrics configures metric export.
type Metrics struct {
	OTLPEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
}

// Config is the complete scraper configuration.
type Config struct {
	Portal     Portal             `json:"portal"`
	Extraction Extraction         `json:"extraction"`
	Thresholds quality.Thresholds `json:"thresholds"`
	Database   string             `json:"database"`
	ExportDir  string             `json:"export_dir"`
	Alerts     Alerts             `json:"alerts"`
	Metrics    Metrics            `json:"metrics"`
	LogLevel   string             `json:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Portal: Portal{
			LoginURL:          scraper.LoginURL,
			DetailURLTemplate: scraper.DetailURLTemplate,
			Timeout:           Duration(browser.DefaultTimeout),
		},
		Extraction: Extraction{
			NavigationSettle:   Duration(2 * time.Second),
			ExpansionSettle:    Duration(time.Second),
			LoginSettle:        Duration(scraper.LoginSettle),
			ExpandPhrases:      append([]string{}, browser.DefaultExpandPhrases...),
			LabelSelector:      browser.LabelSelector,
			FeeSelector:        browser.FeeRowSelector,
			InspectionSelector: browser.InspectionSelector,
			RelatedSelector:    browser.RelatedSelector,
		},
		Thresholds: quality.DefaultThresholds(),
		Database:   store.DefaultDSN,
		ExportDir:  storage.DefaultDir,
		Alerts:     Alerts{StatusChanges: true},
		Metrics:    Metrics{ServiceName: "permit-scraper"},
		LogLevel:   string(logger.LevelInfo),
	}
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), ext
}

// readFile decodes name into out. A missing file is reported as not found.
func readFile(name string, out *Config) (bool, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading config: %w", err)
	}
	if err := json5.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parsing %s: %w", name, err)
	}
	return true, nil
}

// Load builds the configuration from defaults, name and name's .local
// variant, then the environment. An explicitly named file must exist; the
// default file is optional.
func Load(name string) (*Config, error) {
	explicit := name != ""
	if !explicit {
		name = DefaultFile
	}

	cfg := Default()
	prefix, ext := splitExt(name)

	found := false
	for _, path := range []string{name, prefix + ".local" + ext} {
		var layer Config
		ok, err := readFile(path, &layer)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := mergo.Merge(cfg, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
		logger.Debug("Loaded config file", logger.Fields{"path": path})
		found = true
	}
	if explicit && !found {
		return nil, fmt.Errorf("config file %s: %w", name, fs.ErrNotExist)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.openSecrets(os.Getenv(EnvSecretKey)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSecrets decrypts sealed credentials in place.
func (c *Config) openSecrets(key string) error {
	fields := map[string]*string{
		"portal.password":           &c.Portal.Password,
		"alerts.slack_webhook_url":  &c.Alerts.SlackWebhookURL,
		"alerts.telegram_bot_token": &c.Alerts.TelegramBotToken,
	}
	var box *secret.Box
	for name, field := range fields {
		if !secret.IsSealed(*field) {
			continue
		}
		if box == nil {
			b, err := secret.New(key)
			if err != nil {
				return fmt.Errorf("%s is sealed but %s is not set", name, EnvSecretKey)
			}
			box = b
		}
		plain, err := box.Open(*field)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Portal.Username, EnvUsername)
	set(&c.Portal.Password, EnvPassword)
	set(&c.Database, EnvDatabaseURL)
	set(&c.Alerts.SlackWebhookURL, EnvSlackWebhook)
	set(&c.Alerts.TelegramBotToken, EnvTelegramToken)
	set(&c.Alerts.TelegramChatID, EnvTelegramChat)
	set(&c.Metrics.OTLPEndpoint, EnvOTLPEndpoint)
	set(&c.ExportDir, EnvExportDir)
	set(&c.LogLevel, EnvLogLevel)
}

// Validate checks the settings needed to scrape the portal.
func (c *Config) Validate() error {
	var errs []error
	if c.Portal.Username == "" || c.Portal.Password == "" {
		errs = append(errs, fmt.Errorf("portal credentials missing: set %s and %s", EnvUsername, EnvPassword))
	}
	if strings.Count(c.Portal.DetailURLTemplate, "%s") != 1 {
		errs = append(errs, fmt.Errorf("detail_url_template must contain exactly one %%s"))
	}
	if c.Portal.LoginURL == "" {
		errs = append(errs, fmt.Errorf("login_url is required"))
	}
	th := c.Thresholds
	if !(th.Min < th.Warning && th.Warning < th.Max) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy min < warning < max"))
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if (c.Alerts.TelegramBotToken == "") != (c.Alerts.TelegramChatID == "") {
		errs = append(errs, fmt.Errorf("telegram alerts need both %s and %s", EnvTelegramToken, EnvTelegramChat))
	}
	return errors.Join(errs...)
}
