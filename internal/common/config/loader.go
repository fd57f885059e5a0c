// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"clarity-agent/internal/common/validation"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like COMPOSER_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. Load base config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. Merge environment-specific config
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	// 3. Expand env placeholders
	expandEnvVars(viper.GetViper())

	// 4. Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5. Direct override if still empty
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations
func loadEnvFile() {
	// Try multiple paths (for running from different directories)
	possiblePaths := []string{
		".env",          // Current directory
		"../.env",       // Parent directory
		"../../.env",    // Two levels up (for tests in test/e2e/)
		"../../../.env", // Three levels up
	}

	// Also try to find project root by looking for go.mod
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}

// Improved environment variable expansion
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		// Only process string values
		if strVal, ok := val.(string); ok {
			// Check if it contains environment variable pattern
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
	if cfg.Database.Elasticsearch.URL == "" {
		if val := os.Getenv("ELASTICSEARCH_URL"); val != "" {
			cfg.Database.Elasticsearch.URL = val
		}
	}

	// External composer
	if cfg.Composer.External.APIKey == "" {
		if val := os.Getenv("COMPOSER_API_KEY"); val != "" {
			cfg.Composer.External.APIKey = val
		}
	}
	if cfg.Composer.External.BaseURL == "" {
		if val := os.Getenv("COMPOSER_BASE_URL"); val != "" {
			cfg.Composer.External.BaseURL = val
		}
	}

	// Tracing
	if cfg.Observability.Tracing.JaegerEndpoint == "" {
		if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
			cfg.Observability.Tracing.JaegerEndpoint = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile() // Load env file first

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables before unmarshal
	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Pipeline defaults
	if cfg.Pipeline.IntentConfidenceThreshold == 0 {
		cfg.Pipeline.IntentConfidenceThreshold = 0.5
	}
	if cfg.Pipeline.ContextK == 0 {
		cfg.Pipeline.ContextK = 3
	}
	if cfg.Pipeline.Stages == nil {
		cfg.Pipeline.Stages = map[string]StageConfig{}
	}
	for key, stage := range cfg.Pipeline.Stages {
		if stage.Timeout == 0 {
			stage.Timeout = defaultStageTimeout(key)
		}
		if stage.MaxRetries == 0 {
			stage.MaxRetries = 3
		}
		cfg.Pipeline.Stages[key] = stage
	}
	if len(cfg.Pipeline.IntentToolMap) == 0 {
		cfg.Pipeline.IntentToolMap = DefaultIntentToolMap()
	}

	// Risk defaults ship the product lexicon so a bare deployment still
	// escalates on crisis language.
	risk := DefaultRiskConfig()
	if len(cfg.Risk.CrisisPatterns) == 0 {
		cfg.Risk.CrisisPatterns = risk.CrisisPatterns
	}
	if len(cfg.Risk.ElevatedPatterns) == 0 {
		cfg.Risk.ElevatedPatterns = risk.ElevatedPatterns
	}
	if cfg.Risk.HistoryWindow == 0 {
		cfg.Risk.HistoryWindow = risk.HistoryWindow
	}
	if cfg.Risk.HistoryEscalationThreshold == 0 {
		cfg.Risk.HistoryEscalationThreshold = risk.HistoryEscalationThreshold
	}
	if cfg.Risk.EscalationMessage == "" {
		cfg.Risk.EscalationMessage = risk.EscalationMessage
	}
	if len(cfg.Risk.Resources) == 0 {
		cfg.Risk.Resources = risk.Resources
	}

	// Composer defaults
	if cfg.Composer.Mode == "" {
		cfg.Composer.Mode = ComposerModeRuleBased
	}
	if cfg.Composer.External.Provider == "" {
		cfg.Composer.External.Provider = "local"
	}
	if cfg.Composer.External.Model == "" {
		cfg.Composer.External.Model = "gpt-4o-mini"
	}
	if cfg.Composer.External.Temperature == 0 {
		cfg.Composer.External.Temperature = 0.7
	}
	if cfg.Composer.External.MaxTokens == 0 {
		cfg.Composer.External.MaxTokens = 600
	}
	if cfg.Composer.External.Timeout == 0 {
		cfg.Composer.External.Timeout = 60000
	}

	// Corpus defaults
	if cfg.Corpus.Backend == "" {
		cfg.Corpus.Backend = CorpusBackendMemory
	}
	if cfg.Corpus.Index == "" {
		cfg.Corpus.Index = "clarity-knowledge"
	}
	if cfg.Corpus.Cache.TTLSeconds == 0 {
		cfg.Corpus.Cache.TTLSeconds = 300
	}

	// Session defaults
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = SessionBackendMemory
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 1440
	}
	if cfg.Session.HistoryLimit == 0 {
		cfg.Session.HistoryLimit = 50
	}

	// Tool defaults
	if cfg.Tools.Timer.MinSeconds == 0 {
		cfg.Tools.Timer.MinSeconds = 60
	}
	if cfg.Tools.Timer.DefaultMinutes == 0 {
		cfg.Tools.Timer.DefaultMinutes = 25
	}
	if cfg.Tools.Timer.MaxMinutes == 0 {
		cfg.Tools.Timer.MaxMinutes = 180
	}
	if cfg.Tools.Timer.TTLHours == 0 {
		cfg.Tools.Timer.TTLHours = 6
	}

	// Journal defaults
	if cfg.Journal.SummaryDays == 0 {
		cfg.Journal.SummaryDays = 7
	}
	if cfg.Journal.MaxEntries == 0 {
		cfg.Journal.MaxEntries = 200
	}

	// Observability defaults
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = "/metrics"
	}
	if cfg.Observability.Tracing.SampleRatio == 0 {
		cfg.Observability.Tracing.SampleRatio = 1.0
	}
}

// Backend and mode selector values.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	CorpusBackendMemory        = "memory"
	CorpusBackendElasticsearch = "elasticsearch"

	ComposerModeRuleBased     = "rule_based"
	ComposerModeExternalModel = "external_model"
)

// defaultStageTimeout returns the per-stage timeout used when the config
// leaves one unset. Stages doing network I/O get more headroom.
func defaultStageTimeout(stage string) int {
	switch stage {
	case "assess-risk":
		return 1000
	case "classify-intent":
		return 2000
	case "retrieve-context":
		return 3000
	case "compose-reply":
		return 10000
	default:
		return 5000
	}
}

// DefaultIntentToolMap routes the built-in intent vocabulary to the
// built-in tools. Intents absent from the map resolve as direct replies.
func DefaultIntentToolMap() map[string]string {
	return map[string]string{
		"pomodoro_start":  "start_timer",
		"pomodoro_stop":   "stop_timer",
		"pomodoro_status": "timer_status",
		"pomodoro_pause":  "pause_timer",
		"pomodoro_resume": "resume_timer",
		"journal_add":     "save_journal_entry",
		"journal_summary": "journal_summary",
		"exam_study_plan": "create_study_plan",
	}
}

// DefaultRiskConfig returns the shipped risk lexicon, escalation message,
// and support resources. Deployments may override any field.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		CrisisPatterns: []string{
			`(?i)(suicide|kill myself|end my life|self-harm|hurt(?:ing)? myself|overdose)`,
		},
		ElevatedPatterns: map[string]string{
			"anxious":  `(?i)\b(anxious|anxiety|panic|nervous)\b`,
			"sad":      `(?i)\b(sad|depressed|low mood|hopeless)\b`,
			"stressed": `(?i)\b(stress(ed)?|overwhelmed|burn(?:ed)?\s*out|too much|exhaust(?:ed|ion)|tired|fatigued|drained)\b`,
			"lonely":   `(?i)\b(lonely|alone|isolated)\b`,
		},
		HistoryWindow:              10,
		HistoryEscalationThreshold: 3,
		EscalationMessage: "I'm really sorry you're feeling this way. " +
			"If you're in immediate danger, call your local emergency number. " +
			"You can reach the 988 Suicide & Crisis Lifeline (US) by dialing 988 or visiting 988lifeline.org.",
		Resources: []ResourceConfig{
			{
				Name:    "988 Suicide & Crisis Lifeline (US)",
				Contact: "Call or text 988",
				URL:     "https://988lifeline.org",
			},
			{
				Name:    "Crisis Text Line",
				Contact: "Text HOME to 741741",
				URL:     "https://www.crisistextline.org",
			},
			{
				Name:    "Find a Helpline (international)",
				Contact: "",
				URL:     "https://findahelpline.com",
			},
		},
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Pipeline.IntentConfidenceThreshold < 0 || cfg.Pipeline.IntentConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.intent_confidence_threshold must be in [0,1]")
	}
	if cfg.Pipeline.ContextK < 0 {
		return fmt.Errorf("pipeline.context_k must not be negative")
	}

	switch cfg.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for session.backend=redis")
		}
	default:
		return fmt.Errorf("session.backend must be %q or %q", SessionBackendMemory, SessionBackendRedis)
	}

	switch cfg.Corpus.Backend {
	case CorpusBackendMemory:
	case CorpusBackendElasticsearch:
		if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for corpus.backend=elasticsearch")
		}
	default:
		return fmt.Errorf("corpus.backend must be %q or %q", CorpusBackendMemory, CorpusBackendElasticsearch)
	}

	switch cfg.Composer.Mode {
	case ComposerModeRuleBased:
	case ComposerModeExternalModel:
		if cfg.Composer.External.BaseURL == "" {
			return fmt.Errorf("composer.external.base_url is required for composer.mode=external_model")
		}
		if !validation.ValidateURL(cfg.Composer.External.BaseURL) {
			return fmt.Errorf("composer.external.base_url is not a valid URL: %s", cfg.Composer.External.BaseURL)
		}
	default:
		return fmt.Errorf("composer.mode must be %q or %q", ComposerModeRuleBased, ComposerModeExternalModel)
	}

	if cfg.Corpus.Cache.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when corpus.cache.enabled=true")
	}

	if cfg.Journal.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when journal.enabled=true")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when journal.enabled=true")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when journal.enabled=true")
		}
	}

	if cfg.Notifications.Email.Enabled {
		if !validation.ValidateEmail(cfg.Notifications.Email.FromEmail) {
			return fmt.Errorf("notifications.email.from_email is not a valid address: %q", cfg.Notifications.Email.FromEmail)
		}
		if !validation.ValidateEmail(cfg.Notifications.Email.OnCall) {
			return fmt.Errorf("notifications.email.on_call is not a valid address: %q", cfg.Notifications.Email.OnCall)
		}
	}
	if cfg.Notifications.SMS.Enabled && !validation.ValidateTopicARN(cfg.Notifications.SMS.TopicARN) {
		return fmt.Errorf("notifications.sms.topic_arn is not a valid SNS topic ARN: %q", cfg.Notifications.SMS.TopicARN)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetStageConfig retrieves stage-specific configuration with fallback to defaults
func GetStageConfig(cfg *Config, stageName string) StageConfig {
	if stage, exists := cfg.Pipeline.Stages[stageName]; exists {
		return stage
	}

	// Return default stage config if not found
	return StageConfig{
		Enabled:    true,
		Timeout:    defaultStageTimeout(stageName),
		MaxRetries: 3,
	}
}

// IsStageEnabled checks if a specific pipeline stage is enabled
func IsStageEnabled(cfg *Config, stageName string) bool {
	if stage, exists := cfg.Pipeline.Stages[stageName]; exists {
		return stage.Enabled
	}
	return true
}
