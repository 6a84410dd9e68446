package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "SENTINEL_"
	envConfigPath     = "SENTINEL_CONFIG"
	defaultConfigPath = "config/thresholds.yaml"
)

type Config struct {
	LogLevel     string            `koanf:"log_level"`
	Registry     RegistryConfig    `koanf:"registry"`
	Database     DatabaseConfig    `koanf:"database"`
	GitHub       GitHubConfig      `koanf:"github"`
	Discord      DiscordConfig     `koanf:"discord"`
	Server       ServerConfig      `koanf:"server"`
	Onboarding   OnboardingConfig  `koanf:"onboarding"`
	Promotion    PromotionConfig   `koanf:"promotion"`
	Sentinel     SentinelConfig    `koanf:"sentinel"`
	QualityGates QualityGateConfig `koanf:"quality_gates"`
	Labels       LabelConfig       `koanf:"labels"`
	Retry        RetryConfig       `koanf:"retry"`
}

// RegistryConfig describes where contributor records live.
// Backend is one of "git", "sqlite" or "memory".
type RegistryConfig struct {
	Backend       string `koanf:"backend"`
	URL           string `koanf:"url"`
	Token         string `koanf:"token"`
	Dir           string `koanf:"dir"`
	FilePattern   string `koanf:"file_pattern"`
	SchemaVersion int    `koanf:"schema_version"`
	AuthorName    string `koanf:"author_name"`
	AuthorEmail   string `koanf:"author_email"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type GitHubConfig struct {
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url"`
}

type DiscordConfig struct {
	BotToken            string `koanf:"bot_token"`
	BaseURL             string `koanf:"base_url"`
	GuildID             string `koanf:"guild_id"`
	ApprenticeRoleID    string `koanf:"apprentice_role_id"`
	SentinelRoleID      string `koanf:"sentinel_role_id"`
	ApprenticeChannelID string `koanf:"apprentice_channel_id"`
	KnightsChannelID    string `koanf:"knights_channel_id"`
}

type ServerConfig struct {
	Port                       string `koanf:"port"`
	Mode                       string `koanf:"mode"`
	ReadTimeout                int    `koanf:"read_timeout"`
	WriteTimeout               int    `koanf:"write_timeout"`
	HealthCheckIntervalMinutes int    `koanf:"health_check_interval_minutes"`
	APIToken                   string `koanf:"api_token"`
}

type OnboardingConfig struct {
	ChatIDLengthMin     int    `koanf:"chat_id_length_min"`
	ChatIDLengthMax     int    `koanf:"chat_id_length_max"`
	WalletAddressPrefix string `koanf:"wallet_address_prefix"`
	WalletAddressLength int    `koanf:"wallet_address_length"`
}

type PromotionConfig struct {
	Threshold   int `koanf:"threshold"`
	MinAvgLines int `koanf:"min_avg_lines"`
}

type SentinelConfig struct {
	DeadlineDays  int `koanf:"deadline_days"`
	WarningHours  int `koanf:"warning_hours"`
	MaxConcurrent int `koanf:"max_concurrent"`
}

type QualityGateConfig struct {
	AllowedMergeBranches []string `koanf:"allowed_merge_branches"`
	ExcludePRLabels      []string `koanf:"exclude_pr_labels"`
	MinLinesForCount     int      `koanf:"min_lines_for_count"`
	MaxLinesCounted      int      `koanf:"max_lines_counted"`
}

type LabelConfig struct {
	Override             string `koanf:"override"`
	Escalation           string `koanf:"escalation"`
	GoodFirstIssue       string `koanf:"good_first_issue"`
	TriageNeeded         string `koanf:"triage_needed"`
	FirstTimeContributor string `koanf:"first_time_contributor"`
}

type RetryConfig struct {
	Attempts      int   `koanf:"attempts"`
	DelaysSeconds []int `koanf:"delays_seconds"`
}

var AppConfig *Config

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Registry: RegistryConfig{
			Backend:       "git",
			Dir:           "",
			FilePattern:   "contributor__{username}.toml",
			SchemaVersion: 1,
			AuthorName:    "sentinel-bot",
			AuthorEmail:   "sentinel-bot@users.noreply.github.com",
		},
		Database: DatabaseConfig{
			Path: "./sentinel.db",
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com/",
		},
		Discord: DiscordConfig{
			BaseURL: "https://discord.com/api/v10",
		},
		Server: ServerConfig{
			Port:         "8080",
			Mode:         "release",
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Onboarding: OnboardingConfig{
			ChatIDLengthMin:     17,
			ChatIDLengthMax:     19,
			WalletAddressPrefix: "0x",
			WalletAddressLength: 42,
		},
		Promotion: PromotionConfig{
			Threshold:   5,
			MinAvgLines: 10,
		},
		Sentinel: SentinelConfig{
			DeadlineDays:  5,
			WarningHours:  72,
			MaxConcurrent: 1,
		},
		QualityGates: QualityGateConfig{
			AllowedMergeBranches: []string{"main", "master"},
			ExcludePRLabels:      []string{"dependencies", "renovate", "automated"},
			MinLinesForCount:     10,
			MaxLinesCounted:      1000,
		},
		Labels: LabelConfig{
			Override:             "time-taken",
			Escalation:           "needs-knight-attention",
			GoodFirstIssue:       "good-first-issue",
			TriageNeeded:         "triage-needed",
			FirstTimeContributor: "first-time-contributor",
		},
		Retry: RetryConfig{
			Attempts:      3,
			DelaysSeconds: []int{1, 2, 4},
		},
	}
}

// Load builds the configuration by layering, lowest precedence first:
// defaults, .env, the YAML thresholds file and SENTINEL_ prefixed
// environment variables. Nested keys use "__" in env names, e.g.
// SENTINEL_PROMOTION__THRESHOLD.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	k := koanf.New(".")

	if path == "" {
		path = getEnv(envConfigPath, "")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Secrets keep their conventional CI names.
	if cfg.Registry.Token == "" {
		cfg.Registry.Token = getEnv("GIST_PAT", "")
	}
	if cfg.Registry.URL == "" {
		cfg.Registry.URL = getEnv("GIST_URL", "")
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = getEnv("GITHUB_TOKEN", "")
	}
	if cfg.Discord.BotToken == "" {
		cfg.Discord.BotToken = getEnv("DISCORD_BOT_TOKEN", "")
	}
	if cfg.Discord.GuildID == "" {
		cfg.Discord.GuildID = getEnv("DISCORD_GUILD_ID", "")
	}
	if cfg.Server.APIToken == "" {
		cfg.Server.APIToken = getEnv("SENTINEL_API_TOKEN", "")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = getEnv("PORT", "8080")
	}
	if n := getEnvAsInt("MAX_CONCURRENT_ASSIGNMENTS", 0); n > 0 {
		cfg.Sentinel.MaxConcurrent = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

// Validate rejects configurations the engines cannot work with.
func (c *Config) Validate() error {
	if c.Onboarding.ChatIDLengthMin <= 0 || c.Onboarding.ChatIDLengthMin > c.Onboarding.ChatIDLengthMax {
		return fmt.Errorf("invalid chat id length bounds [%d,%d]", c.Onboarding.ChatIDLengthMin, c.Onboarding.ChatIDLengthMax)
	}
	if c.Onboarding.WalletAddressLength <= len(c.Onboarding.WalletAddressPrefix) {
		return errors.New("wallet address length must exceed the prefix length")
	}
	if c.Sentinel.DeadlineDays <= 0 {
		return errors.New("sentinel.deadline_days must be positive")
	}
	if c.Sentinel.WarningHours < 0 {
		return errors.New("sentinel.warning_hours must not be negative")
	}
	if c.Sentinel.MaxConcurrent <= 0 {
		return errors.New("sentinel.max_concurrent must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("retry.attempts must be positive")
	}
	if c.Labels.Override == "" {
		return errors.New("labels.override must not be empty")
	}
	switch c.Registry.Backend {
	case "git", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown registry backend %q", c.Registry.Backend)
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
