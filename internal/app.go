// Package internal provides the App struct that wires all components of join
// together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joinboard/join/internal/cli"
	"github.com/joinboard/join/internal/core"
	"github.com/joinboard/join/internal/docstore"
	"github.com/joinboard/join/internal/logger"
	"github.com/joinboard/join/internal/observability"
	"github.com/joinboard/join/internal/storage"
	"github.com/joinboard/join/pkg/models"
)

// App holds all service dependencies of join.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer: exactly one of Remote and Local is set.
	Remote storage.RemoteStore
	Local  *docstore.Local

	// Board services
	Tasks    core.TaskRepository
	Contacts core.ContactBook

	// Observability
	EventLog    observability.EventLog
	Recorder    *observability.Recorder
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components. basePath is the directory holding
// .joinconfig, the event log, the log files and local snapshots.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	if err := logger.Init(logger.Config{Debug: cfg.Debug, BaseDir: basePath}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(cfg.EventsPath)
	if err != nil {
		// Non-fatal: the board works without an event log.
		logger.Warn("event log disabled", "path", cfg.EventsPath, "err", err)
		app.EventLog = nil
	}
	app.Recorder = observability.NewRecorder(app.EventLog)
	if app.EventLog != nil {
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(cfg.Alerts))
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Storage layer ---
	store, err := app.openStore(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// --- Board services ---
	app.Tasks = core.NewTaskRepository(store, core.NewIDGenerator(nil), app.Recorder, logger.Named("tasks"))
	app.Contacts = core.NewContactBook(store, app.Recorder, logger.Named("contacts"))

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Tasks = app.Tasks
	cli.Contacts = app.Contacts

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// openStore returns the document store the repositories write to: the local
// snapshot opened in-process when store.local is set, otherwise the REST
// endpoint at store.url.
func (a *App) openStore(cfg *models.GlobalConfig) (core.DocumentStore, error) {
	if cfg.Store.Local {
		snap, err := docstore.NewSnapshotter(cfg.DocStore.Snapshot, cfg.DocStore.Path)
		if err != nil {
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		a.Local, err = docstore.OpenLocal(snap, logger.Named("docstore"))
		if err != nil {
			_ = snap.Close()
			return nil, fmt.Errorf("opening local store: %w", err)
		}
		return a.Local, nil
	}

	restCfg := storage.RESTConfig{
		BaseURL:   cfg.Store.URL,
		AuthToken: cfg.Store.AuthToken,
		Timeout:   cfg.Store.Timeout,
	}
	if cfg.Store.CredentialsFile != "" {
		client, err := storage.NewServiceAccountClient(context.Background(), cfg.Store.CredentialsFile)
		if err != nil {
			return nil, err
		}
		restCfg.HTTPClient = client
	}
	remote, err := storage.NewRESTStore(restCfg)
	if err != nil {
		return nil, err
	}
	a.Remote = remote
	return remote, nil
}

func alertThresholds(cfg models.AlertConfig) observability.AlertThresholds {
	th := observability.DefaultAlertThresholds()
	if cfg.UrgentThreshold > 0 {
		th.UrgentOpen = cfg.UrgentThreshold
	}
	if cfg.DueSoonDays > 0 {
		th.DueSoonDays = cfg.DueSoonDays
	}
	return th
}

// Close releases resources held by the App: the local store snapshot and the
// event log file handle. It is safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.Local != nil {
		errs = append(errs, a.Local.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the join data directory. It checks the
// JOIN_HOME env var, then walks up from the current directory looking for
// .joinconfig, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("JOIN_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd
}
