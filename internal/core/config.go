// Package core contains the board logic for join: the task repository, the
// subtask normalizer, the stage transition engine, edit sessions, contacts,
// summaries and configuration.
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joinboard/join/pkg/models"
)

// ConfigFileName is the name of the YAML configuration file in the base path.
const ConfigFileName = ".joinconfig"

// ConfigurationManager defines the interface for loading and validating the
// .joinconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper. Values come
// from defaults, then .joinconfig, then JOIN_* environment variables. A .env
// file in the base path is loaded into the environment first.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager reading from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Store: models.StoreConfig{
			URL:     "http://127.0.0.1:9090",
			Timeout: 10 * time.Second,
		},
		DocStore: models.DocStoreConfig{
			Addr:     "127.0.0.1:9090",
			Snapshot: "yaml",
		},
		EventsPath: "events.jsonl",
		Alerts: models.AlertConfig{
			UrgentThreshold: 5,
			DueSoonDays:     2,
		},
	}
}

func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	if err := godotenv.Load(filepath.Join(cm.basePath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("JOIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.local", false)
	v.SetDefault("store.url", cfg.Store.URL)
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.timeout", cfg.Store.Timeout)
	v.SetDefault("log.debug", false)
	v.SetDefault("events.path", cfg.EventsPath)
	v.SetDefault("docstore.addr", cfg.DocStore.Addr)
	v.SetDefault("docstore.snapshot", cfg.DocStore.Snapshot)
	v.SetDefault("docstore.path", "")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack.webhook_url", "")
	v.SetDefault("alerts.urgent_threshold", cfg.Alerts.UrgentThreshold)
	v.SetDefault("alerts.due_soon_days", cfg.Alerts.DueSoonDays)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Store.Local = v.GetBool("store.local")
	cfg.Store.URL = strings.TrimRight(v.GetString("store.url"), "/")
	cfg.Store.AuthToken = v.GetString("store.auth_token")
	cfg.Store.CredentialsFile = cm.resolve(v.GetString("store.credentials_file"))
	cfg.Store.Timeout = v.GetDuration("store.timeout")
	cfg.Debug = v.GetBool("log.debug")
	cfg.EventsPath = cm.resolve(v.GetString("events.path"))
	cfg.DocStore.Addr = v.GetString("docstore.addr")
	cfg.DocStore.Snapshot = strings.ToLower(v.GetString("docstore.snapshot"))
	cfg.DocStore.Path = v.GetString("docstore.path")
	if cfg.DocStore.Path == "" {
		cfg.DocStore.Path = defaultSnapshotPath(cfg.DocStore.Snapshot)
	}
	cfg.DocStore.Path = cm.resolve(cfg.DocStore.Path)
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")
	cfg.Alerts.UrgentThreshold = v.GetInt("alerts.urgent_threshold")
	cfg.Alerts.DueSoonDays = v.GetInt("alerts.due_soon_days")

	return cfg, nil
}

// resolve makes relative paths relative to the base path.
func (cm *viperConfigManager) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cm.basePath, p)
}

func defaultSnapshotPath(kind string) string {
	switch kind {
	case "sqlite":
		return "board.db"
	case "yaml":
		return "board.yaml"
	}
	return ""
}

// ValidateConfig checks the configuration for invalid values and returns an
// error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if u, err := url.Parse(cfg.Store.URL); !cfg.Store.Local && (err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "") {
		errs = append(errs, fmt.Sprintf("store.url %q must be an http or https URL", cfg.Store.URL))
	}
	if cfg.Store.Local && cfg.DocStore.Snapshot == "none" {
		errs = append(errs, "store.local requires a docstore.snapshot of yaml or sqlite")
	}
	if cfg.Store.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("store.timeout must be positive, got %s", cfg.Store.Timeout))
	}
	switch cfg.DocStore.Snapshot {
	case "yaml", "sqlite", "none":
	default:
		errs = append(errs, fmt.Sprintf("docstore.snapshot %q is invalid, must be one of: yaml, sqlite, none", cfg.DocStore.Snapshot))
	}
	if cfg.DocStore.Addr == "" {
		errs = append(errs, "docstore.addr must not be empty")
	}
	if cfg.Alerts.UrgentThreshold < 0 {
		errs = append(errs, fmt.Sprintf("alerts.urgent_threshold must be non-negative, got %d", cfg.Alerts.UrgentThreshold))
	}
	if cfg.Alerts.DueSoonDays < 0 {
		errs = append(errs, fmt.Sprintf("alerts.due_soon_days must be non-negative, got %d", cfg.Alerts.DueSoonDays))
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
