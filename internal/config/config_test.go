package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
channel_id: "123456"
tracker_base_url: "https://tracker.internal"
classifier_provider: anthropic
standup_time: "09:15"
standup_days: [mon, wed, fri]
reply_window: 8m
final_window: 3m
participants:
  - id: u-alice
    name: Alice Chen
    contact: alice
  - id: u-bob
    name: Bob Okafor
    contact: bob
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollcall.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ROLLCALL_DISCORD_TOKEN", "bot-token")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
}

func TestLoadFromYAML(t *testing.T) {
	validEnv(t)
	cfg, err := Load(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ChannelID != "123456" {
		t.Errorf("channel = %q", cfg.ChannelID)
	}
	if cfg.StandupTime != "09:15" || len(cfg.StandupDays) != 3 {
		t.Errorf("schedule = %q %v", cfg.StandupTime, cfg.StandupDays)
	}
	if cfg.ReplyWindow != 8*time.Minute || cfg.FinalWindow != 3*time.Minute {
		t.Errorf("windows = %s/%s", cfg.ReplyWindow, cfg.FinalWindow)
	}
	if len(cfg.Participants) != 2 || cfg.Participants[0].ID != "u-alice" {
		t.Errorf("participants = %+v", cfg.Participants)
	}
	// Untouched fields keep defaults.
	if cfg.DBDriver != "sqlite" || cfg.ExchangeCap != 3 {
		t.Errorf("defaults = %q %d", cfg.DBDriver, cfg.ExchangeCap)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	validEnv(t)
	t.Setenv("ROLLCALL_CHANNEL_ID", "999")
	t.Setenv("ROLLCALL_REPLY_WINDOW", "20m")
	t.Setenv("ROLLCALL_DB_DRIVER", "Postgres")
	t.Setenv("ROLLCALL_DB_DSN", "host=db user=rollcall")

	cfg, err := Load(writeConfigFile(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ChannelID != "999" {
		t.Errorf("channel = %q", cfg.ChannelID)
	}
	if cfg.ReplyWindow != 20*time.Minute {
		t.Errorf("reply window = %s", cfg.ReplyWindow)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("driver not normalized: %q", cfg.DBDriver)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StandupTime != "09:30" || cfg.ClassifierProvider != "anthropic" {
		t.Errorf("defaults = %q %q", cfg.StandupTime, cfg.ClassifierProvider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	base := func(t *testing.T) Config {
		validEnv(t)
		cfg, err := Load(writeConfigFile(t, sampleYAML))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.DiscordToken = "" }, "DISCORD_TOKEN"},
		{"missing channel", func(c *Config) { c.ChannelID = " " }, "channel_id"},
		{"bad driver", func(c *Config) { c.DBDriver = "oracle" }, "db_driver"},
		{"window order", func(c *Config) { c.FinalWindow = c.ReplyWindow }, "final_window"},
		{"no participants", func(c *Config) { c.Participants = nil }, "participant"},
		{"duplicate ids", func(c *Config) { c.Participants[1].ID = c.Participants[0].ID }, "duplicate"},
		{"unknown provider", func(c *Config) { c.ClassifierProvider = "mystery" }, "classifier_provider"},
		{"missing api key", func(c *Config) { c.AnthropicAPIKey = "" }, "ANTHROPIC_API_KEY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}
