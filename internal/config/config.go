// Package config loads the bot's settings from a YAML file with
// environment overrides. Secrets come from the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rollcall.local/rollcall/internal/standup"
)

const (
	defaultDBDriver        = "sqlite"
	defaultDBDSN           = "rollcall.db"
	defaultProvider        = "anthropic"
	defaultStandupTime     = "09:30"
	defaultReplyWindow     = 10 * time.Minute
	defaultFinalWindow     = 5 * time.Minute
	defaultExchangeCap     = 3
	defaultPhaseAItemCap   = 3
	defaultMinSummaryWords = 8
)

type Config struct {
	// Secrets, environment only.
	DiscordToken    string `yaml:"-"`
	TrackerToken    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`

	ChannelID      string `yaml:"channel_id"`
	TrackerBaseURL string `yaml:"tracker_base_url"`

	ClassifierProvider string `yaml:"classifier_provider"`
	ClassifierModel    string `yaml:"classifier_model"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	StandupTime string   `yaml:"standup_time"`
	StandupDays []string `yaml:"standup_days"`
	Timezone    string   `yaml:"timezone"`

	ReplyWindow     time.Duration `yaml:"reply_window"`
	FinalWindow     time.Duration `yaml:"final_window"`
	ExchangeCap     int           `yaml:"exchange_cap"`
	PhaseAItemCap   int           `yaml:"phase_a_item_cap"`
	MinSummaryWords int           `yaml:"min_summary_words"`

	Participants []standup.Participant `yaml:"participants"`
}

// Load reads the YAML file at path (optional, "" skips the file) and then
// applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Config{
		DBDriver:           defaultDBDriver,
		DBDSN:              defaultDBDSN,
		ClassifierProvider: defaultProvider,
		StandupTime:        defaultStandupTime,
		ReplyWindow:        defaultReplyWindow,
		FinalWindow:        defaultFinalWindow,
		ExchangeCap:        defaultExchangeCap,
		PhaseAItemCap:      defaultPhaseAItemCap,
		MinSummaryWords:    defaultMinSummaryWords,
	}

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.DiscordToken, "ROLLCALL_DISCORD_TOKEN")
	setString(&c.TrackerToken, "ROLLCALL_TRACKER_TOKEN")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.ChannelID, "ROLLCALL_CHANNEL_ID")
	setString(&c.TrackerBaseURL, "ROLLCALL_TRACKER_URL")
	setString(&c.ClassifierProvider, "ROLLCALL_CLASSIFIER_PROVIDER")
	setString(&c.ClassifierModel, "ROLLCALL_CLASSIFIER_MODEL")
	setString(&c.DBDriver, "ROLLCALL_DB_DRIVER")
	setString(&c.DBDSN, "ROLLCALL_DB_DSN")
	setString(&c.StandupTime, "ROLLCALL_STANDUP_TIME")
	setString(&c.Timezone, "ROLLCALL_TIMEZONE")
	setDuration(&c.ReplyWindow, "ROLLCALL_REPLY_WINDOW")
	setDuration(&c.FinalWindow, "ROLLCALL_FINAL_WINDOW")

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
}

func setString(dst *string, key string) {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		*dst = raw
	}
}

func setDuration(dst *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	parsed, err := time.ParseDuration(raw)
	if err == nil && parsed > 0 {
		*dst = parsed
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DiscordToken) == "" {
		return errors.New("ROLLCALL_DISCORD_TOKEN must not be empty")
	}
	if strings.TrimSpace(c.ChannelID) == "" {
		return errors.New("channel_id must not be empty")
	}
	if strings.TrimSpace(c.TrackerBaseURL) == "" {
		return errors.New("tracker_base_url must not be empty")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return errors.New("db_driver must be sqlite or postgres")
	}
	if c.ReplyWindow <= 0 || c.FinalWindow <= 0 {
		return errors.New("reply_window and final_window must be > 0")
	}
	if c.FinalWindow >= c.ReplyWindow {
		return fmt.Errorf("final_window (%s) must be shorter than reply_window (%s)", c.FinalWindow, c.ReplyWindow)
	}
	if c.ExchangeCap <= 0 {
		return errors.New("exchange_cap must be > 0")
	}
	if c.PhaseAItemCap <= 0 {
		return errors.New("phase_a_item_cap must be > 0")
	}
	if len(c.Participants) == 0 {
		return errors.New("at least one participant must be configured")
	}

	seen := make(map[string]bool, len(c.Participants))
	for i, p := range c.Participants {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant %d must have an id and a name", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate participant id %q", p.ID)
		}
		seen[p.ID] = true
	}

	switch strings.ToLower(strings.TrimSpace(c.ClassifierProvider)) {
	case "anthropic":
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return errors.New("ANTHROPIC_API_KEY must not be empty for the anthropic provider")
		}
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return errors.New("OPENAI_API_KEY must not be empty for the openai provider")
		}
	default:
		return fmt.Errorf("classifier_provider %q is not supported", c.ClassifierProvider)
	}
	return nil
}
