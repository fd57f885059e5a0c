// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Composer      ComposerConfig      `mapstructure:"composer"`
	Corpus        CorpusConfig        `mapstructure:"corpus"`
	Session       SessionConfig       `mapstructure:"session"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Journal       JournalConfig       `mapstructure:"journal"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Pipeline Configuration ---

// PipelineConfig holds the turn-processing settings shared by the
// dialogue manager and the per-stage handlers.
type PipelineConfig struct {
	// IntentConfidenceThreshold is the minimum classifier confidence at
	// which an intent may trigger a tool invocation. Range [0,1].
	IntentConfidenceThreshold float64 `mapstructure:"intent_confidence_threshold"`
	// ContextK caps how many passages the retriever returns per turn.
	ContextK int `mapstructure:"context_k"`
	// Stages carries per-stage settings keyed by stage name
	// (assess-risk, classify-intent, retrieve-context, compose-reply).
	Stages map[string]StageConfig `mapstructure:"stages"`
	// IntentToolMap routes intent labels to registered tool names.
	IntentToolMap map[string]string `mapstructure:"intent_tool_map"`
}

// StageConfig holds the core settings applicable to every pipeline stage.
type StageConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Timeout    int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries int  `mapstructure:"max_retries"` // For error handling
}

// RiskConfig holds the risk signal lexicon and escalation settings.
type RiskConfig struct {
	// CrisisPatterns are regexes that force an immediate crisis
	// assessment when any of them matches the turn text.
	CrisisPatterns []string `mapstructure:"crisis_patterns"`
	// ElevatedPatterns map a mood label to the regex that detects it.
	// Any match yields an elevated assessment and the label is carried
	// as a matched signal for downstream reply shaping.
	ElevatedPatterns map[string]string `mapstructure:"elevated_patterns"`
	// HistoryWindow bounds how many recent user turns the detector
	// scans in addition to the current text.
	HistoryWindow int `mapstructure:"history_window"`
	// HistoryEscalationThreshold is the number of elevated turns inside
	// the window at which the assessment escalates to crisis.
	HistoryEscalationThreshold int `mapstructure:"history_escalation_threshold"`
	// EscalationMessage is the reply text delivered on every escalation.
	EscalationMessage string `mapstructure:"escalation_message"`
	// Resources are the support contacts attached to every escalation.
	Resources []ResourceConfig `mapstructure:"resources"`
}

type ResourceConfig struct {
	Name    string `mapstructure:"name"`
	Contact string `mapstructure:"contact"`
	URL     string `mapstructure:"url"`
}

// ComposerConfig selects and parameterizes the reply composer.
type ComposerConfig struct {
	// Mode is "rule_based" or "external_model".
	Mode string `mapstructure:"mode"`

	External struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Provider    string  `mapstructure:"provider"`
		Model       string  `mapstructure:"model"`
		Temperature float64 `mapstructure:"temperature"`
		MaxTokens   int     `mapstructure:"max_tokens"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"external"`
}

// CorpusConfig selects and parameterizes the passage index.
type CorpusConfig struct {
	// Backend is "memory" or "elasticsearch".
	Backend string `mapstructure:"backend"`
	Index   string `mapstructure:"index"`
	// SeedData loads the built-in wellness passages at startup.
	SeedData bool `mapstructure:"seed_data"`

	Cache struct {
		Enabled    bool `mapstructure:"enabled"`
		TTLSeconds int  `mapstructure:"ttl_seconds"`
	} `mapstructure:"cache"`
}

// SessionConfig selects and parameterizes the session store.
type SessionConfig struct {
	// Backend is "redis" or "memory".
	Backend      string `mapstructure:"backend"`
	TTLMinutes   int    `mapstructure:"ttl_minutes"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// ToolsConfig holds settings for the tool registry and built-in tools.
type ToolsConfig struct {
	// RegistryFile optionally points at a JSON registry whose
	// definitions override the built-in tool schemas.
	RegistryFile string `mapstructure:"registry_file"`

	Timer struct {
		MinSeconds     int `mapstructure:"min_seconds"`
		DefaultMinutes int `mapstructure:"default_minutes"`
		MaxMinutes     int `mapstructure:"max_minutes"`
		TTLHours       int `mapstructure:"ttl_hours"`
	} `mapstructure:"timer"`
}

// JournalConfig holds settings for the journal store and summary tool.
type JournalConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	SummaryDays int  `mapstructure:"summary_days"`
	MaxEntries  int  `mapstructure:"max_entries"`
}

// NotificationConfig holds settings for the crisis escalation notifier.
type NotificationConfig struct {
	Email struct {
		Enabled bool `mapstructure:"enabled"`
		// FromEmail is the verified sender identity.
		FromEmail string `mapstructure:"from_email"`
		// OnCall receives every crisis alert.
		OnCall string `mapstructure:"on_call"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ObservabilityConfig holds metrics and tracing settings.
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
	Tracing struct {
		Enabled        bool    `mapstructure:"enabled"`
		JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
		SampleRatio    float64 `mapstructure:"sample_ratio"`
	} `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
