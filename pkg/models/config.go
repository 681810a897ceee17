package models

import "time"

// StoreConfig describes how to reach the remote document store.
type StoreConfig struct {
	// Local opens the docstore snapshot in-process instead of calling URL.
	Local           bool          `yaml:"local" mapstructure:"local"`
	URL             string        `yaml:"url" mapstructure:"url"`
	AuthToken       string        `yaml:"auth_token,omitempty" mapstructure:"auth_token"`
	CredentialsFile string        `yaml:"credentials_file,omitempty" mapstructure:"credentials_file"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DocStoreConfig configures the local document store server.
type DocStoreConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"` // yaml, sqlite or none
	Path     string `yaml:"path,omitempty" mapstructure:"path"`
}

// SlackConfig holds the Slack webhook used for alert notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls outbound alert notifications.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// AlertConfig holds the alert thresholds.
type AlertConfig struct {
	UrgentThreshold int `yaml:"urgent_threshold" mapstructure:"urgent_threshold"`
	DueSoonDays     int `yaml:"due_soon_days" mapstructure:"due_soon_days"`
}

// GlobalConfig holds system-wide settings read from .joinconfig via Viper.
type GlobalConfig struct {
	Store         StoreConfig        `yaml:"store" mapstructure:"store"`
	DocStore      DocStoreConfig     `yaml:"docstore" mapstructure:"docstore"`
	Debug         bool               `yaml:"debug" mapstructure:"debug"`
	EventsPath    string             `yaml:"events_path" mapstructure:"events_path"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
}
