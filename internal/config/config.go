// Package config provides YAML-based configuration loading for Changeboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Changeboard configuration, loaded from changeboard.yaml.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Phases    []PhaseConfig   `yaml:"phases"`
	Reference ReferenceConfig `yaml:"reference"`
	SLA       SLAConfig       `yaml:"sla"`
	Counters  CountersConfig  `yaml:"counters"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	UserHeader string `yaml:"user_header"`
	BaseURL    string `yaml:"base_url"`
}

// DatabaseConfig selects the GORM dialector and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
	URL    string `yaml:"url"` // scheme-prefixed form, as in DATABASE_URL
}

// PhaseConfig defines one workflow phase.
type PhaseConfig struct {
	Name             string `yaml:"name"`
	InProgressStatus string `yaml:"in_progress_status"`
	CompletedStatus  string `yaml:"completed_status"`
	Decision         bool   `yaml:"decision"`
}

// ReferenceConfig lists the lookup values seeded into config rows.
type ReferenceConfig struct {
	ImpactAreas   []string `yaml:"impact_areas"`
	UrgencyLevels []string `yaml:"urgency_levels"`
}

// Threshold is a green/amber boundary pair; anything past Amber is red.
type Threshold struct {
	Green time.Duration `yaml:"green"`
	Amber time.Duration `yaml:"amber"`
}

// SLAConfig holds the per-stage thresholds.
type SLAConfig struct {
	Assignment     Threshold `yaml:"assignment"`
	Decision       Threshold `yaml:"decision"`
	Implementation Threshold `yaml:"implementation"`
}

// CountersConfig controls the dashboard counter cache.
type CountersConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ScheduleConfig holds 5-field cron expressions for background jobs.
// An empty expression disables the job.
type ScheduleConfig struct {
	Counters string `yaml:"counters"`
	SLASweep string `yaml:"sla_sweep"`
	Digest   string `yaml:"digest"`
}

// NotifyConfig holds chat notification settings.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig is a bot token plus the channel to post into.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// DefaultPhases is the standard BCR lifecycle.
var DefaultPhases = []PhaseConfig{
	{Name: "Submission", InProgressStatus: "Submission Received", CompletedStatus: "Submission Accepted"},
	{Name: "Prioritisation", InProgressStatus: "Prioritisation In Progress", CompletedStatus: "Prioritised"},
	{Name: "Technical Review", InProgressStatus: "Technical Review In Progress", CompletedStatus: "Technical Review Complete"},
	{Name: "Governance", InProgressStatus: "Awaiting Governance Decision", CompletedStatus: "Governance Approved", Decision: true},
	{Name: "Stakeholder Consultation", InProgressStatus: "Consultation Open", CompletedStatus: "Consultation Closed"},
	{Name: "Drafting", InProgressStatus: "Drafting In Progress", CompletedStatus: "Draft Complete"},
	{Name: "Approval", InProgressStatus: "Awaiting Approval", CompletedStatus: "Approved", Decision: true},
	{Name: "Implementation", InProgressStatus: "Implementation In Progress", CompletedStatus: "Implemented"},
	{Name: "Testing", InProgressStatus: "Testing In Progress", CompletedStatus: "Testing Passed"},
	{Name: "Go-Live", InProgressStatus: "Go-Live Scheduled", CompletedStatus: "Live"},
	{Name: "Post-Review", InProgressStatus: "Post-Implementation Review", CompletedStatus: "Review Complete"},
	{Name: "Closed", InProgressStatus: "Closing", CompletedStatus: "Closed"},
}

// DefaultImpactAreas and DefaultUrgencyLevels seed reference data when the
// config file lists none.
var (
	DefaultImpactAreas   = []string{"Settlement", "Metering", "Registration", "Billing", "Market Messages", "Reporting"}
	DefaultUrgencyLevels = []string{"Low", "Medium", "High", "Critical"}
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// overrides are applied before defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether detailed errors may be shown to users.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// applyEnv overlays environment variables onto file values.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		c.Database.Driver = ""
		c.Database.DSN = ""
	}
	if v := getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "production"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.UserHeader == "" {
		c.Server.UserHeader = "X-Forwarded-Email"
	}
	if c.Database.URL != "" && c.Database.Driver == "" {
		c.Database.Driver, c.Database.DSN = splitDatabaseURL(c.Database.URL)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "changeboard.db"
	}
	if len(c.Phases) == 0 {
		c.Phases = append([]PhaseConfig(nil), DefaultPhases...)
	}
	if len(c.Reference.ImpactAreas) == 0 {
		c.Reference.ImpactAreas = append([]string(nil), DefaultImpactAreas...)
	}
	if len(c.Reference.UrgencyLevels) == 0 {
		c.Reference.UrgencyLevels = append([]string(nil), DefaultUrgencyLevels...)
	}
	defaultThreshold(&c.SLA.Assignment, 48*time.Hour, 120*time.Hour)
	defaultThreshold(&c.SLA.Decision, 240*time.Hour, 480*time.Hour)
	defaultThreshold(&c.SLA.Implementation, 720*time.Hour, 1440*time.Hour)
	if c.Counters.TTL == 0 {
		c.Counters.TTL = 5 * time.Minute
	}
}

func defaultThreshold(t *Threshold, green, amber time.Duration) {
	if t.Green == 0 {
		t.Green = green
	}
	if t.Amber == 0 {
		t.Amber = amber
	}
}

// splitDatabaseURL maps a scheme-prefixed URL onto a driver and the DSN the
// matching GORM dialector expects.
func splitDatabaseURL(raw string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw
	case strings.HasPrefix(raw, "mysql://"):
		return "mysql", strings.TrimPrefix(raw, "mysql://")
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite", strings.TrimPrefix(raw, "sqlite://")
	case strings.HasPrefix(raw, "file:"):
		return "sqlite", raw
	}
	return "", raw
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql, postgres)", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Phases {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("phases[%d].name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("phases[%d].name %q is duplicated", i, p.Name))
		}
		seen[p.Name] = true
		if p.InProgressStatus == "" {
			errs = append(errs, fmt.Sprintf("phases[%d].in_progress_status is required", i))
		}
		if p.CompletedStatus == "" {
			errs = append(errs, fmt.Sprintf("phases[%d].completed_status is required", i))
		}
	}
	for _, st := range []struct {
		name string
		t    Threshold
	}{
		{"assignment", c.SLA.Assignment},
		{"decision", c.SLA.Decision},
		{"implementation", c.SLA.Implementation},
	} {
		if st.t.Amber < st.t.Green {
			errs = append(errs, fmt.Sprintf("sla.%s.amber must not be shorter than green", st.name))
		}
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
