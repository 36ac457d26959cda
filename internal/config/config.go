// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Resolver   ResolverConfig   `mapstructure:"resolver" yaml:"resolver"`
	Loop       LoopConfig       `mapstructure:"loop" yaml:"loop"`
	Safety     SafetyConfig     `mapstructure:"safety" yaml:"safety"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// MatchingConfig carries the learned-detection scoring knobs. The defaults
// are empirically chosen; they are configuration, not constants, because
// nobody has demonstrated they are optimal.
type MatchingConfig struct {
	ExactBonus       float64 `mapstructure:"exact_bonus" yaml:"exact_bonus"`
	WordOverlapBonus float64 `mapstructure:"word_overlap_bonus" yaml:"word_overlap_bonus"`
	FuzzyBonus       float64 `mapstructure:"fuzzy_bonus" yaml:"fuzzy_bonus"`
	FuzzyCutoff      float64 `mapstructure:"fuzzy_cutoff" yaml:"fuzzy_cutoff"`
	MinWordLength    int     `mapstructure:"min_word_length" yaml:"min_word_length"`
}

// ResolverConfig tunes the element-detection cascade.
type ResolverConfig struct {
	OCRThreshold      float64        `mapstructure:"ocr_threshold" yaml:"ocr_threshold"`
	TemplateThreshold float64        `mapstructure:"template_threshold" yaml:"template_threshold"`
	Matching          MatchingConfig `mapstructure:"matching" yaml:"matching"`
}

// LoopConfig tunes the action-control loop.
type LoopConfig struct {
	DefaultMaxSteps   int           `mapstructure:"default_max_steps" yaml:"default_max_steps"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	SnapshotRingSize  int           `mapstructure:"snapshot_ring_size" yaml:"snapshot_ring_size"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	SettleNavigation  time.Duration `mapstructure:"settle_navigation" yaml:"settle_navigation"`
	SettleInteraction time.Duration `mapstructure:"settle_interaction" yaml:"settle_interaction"`
	InitRetryDelay    time.Duration `mapstructure:"init_retry_delay" yaml:"init_retry_delay"`
	DecideRatePerSec  float64       `mapstructure:"decide_rate_per_sec" yaml:"decide_rate_per_sec"`
	ReasoningWindow   int           `mapstructure:"reasoning_window" yaml:"reasoning_window"`
}

// RiskRule maps a keyword substring of the action type to a risk level.
// Rules are evaluated in order; the first match wins.
type RiskRule struct {
	Keyword string `mapstructure:"keyword" yaml:"keyword"`
	Level   string `mapstructure:"level" yaml:"level"`
}

// SafetyConfig tunes risk gating and the audit/undo trail.
type SafetyConfig struct {
	AuditDir         string     `mapstructure:"audit_dir" yaml:"audit_dir"`
	AuditMirrorLimit int        `mapstructure:"audit_mirror_limit" yaml:"audit_mirror_limit"`
	UndoCapacity     int        `mapstructure:"undo_capacity" yaml:"undo_capacity"`
	Rules            []RiskRule `mapstructure:"rules" yaml:"rules"`
}

// LLMProvider defines the supported inference backends.
type LLMProvider string

const (
	ProviderGemini   LLMProvider = "gemini"
	ProviderGenAISDK LLMProvider = "genai"
)

// LLMConfig defines the remote inference endpoint used by the decide step.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DispatcherConfig tunes the task-level retry wrapper. This is the only
// retry mechanism in the system; the loop itself never retries.
type DispatcherConfig struct {
	MaxRetries     uint64        `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time" yaml:"max_elapsed_time"`
}

// BrowserConfig holds settings for the chromedp-backed web provider.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.Safety.Rules = DefaultRiskRules()
	return &cfg
}

// DefaultRiskRules is the built-in keyword-to-risk table, evaluated in order.
func DefaultRiskRules() []RiskRule {
	return []RiskRule{
		{Keyword: "format", Level: "CRITICAL"},
		{Keyword: "delete_all", Level: "CRITICAL"},
		{Keyword: "factory_reset", Level: "CRITICAL"},
		{Keyword: "wipe", Level: "CRITICAL"},
		{Keyword: "delete", Level: "HIGH"},
		{Keyword: "remove", Level: "HIGH"},
		{Keyword: "uninstall", Level: "HIGH"},
		{Keyword: "kill", Level: "HIGH"},
		{Keyword: "purchase", Level: "HIGH"},
		{Keyword: "pay", Level: "HIGH"},
		{Keyword: "send", Level: "MEDIUM"},
		{Keyword: "submit", Level: "MEDIUM"},
		{Keyword: "install", Level: "MEDIUM"},
		{Keyword: "click", Level: "LOW"},
		{Keyword: "type", Level: "LOW"},
		{Keyword: "scroll", Level: "LOW"},
		{Keyword: "read", Level: "LOW"},
		{Keyword: "capture", Level: "LOW"},
	}
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uipilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Resolver --
	v.SetDefault("resolver.ocr_threshold", 0.6)
	v.SetDefault("resolver.template_threshold", 0.8)
	v.SetDefault("resolver.matching.exact_bonus", 0.5)
	v.SetDefault("resolver.matching.word_overlap_bonus", 0.3)
	v.SetDefault("resolver.matching.fuzzy_bonus", 0.1)
	v.SetDefault("resolver.matching.fuzzy_cutoff", 0.75)
	v.SetDefault("resolver.matching.min_word_length", 3)

	// -- Loop --
	v.SetDefault("loop.default_max_steps", 25)
	v.SetDefault("loop.default_timeout", "5m")
	v.SetDefault("loop.snapshot_ring_size", 5)
	v.SetDefault("loop.history_limit", 100)
	v.SetDefault("loop.settle_navigation", "2s")
	v.SetDefault("loop.settle_interaction", "500ms")
	v.SetDefault("loop.init_retry_delay", "1s")
	v.SetDefault("loop.decide_rate_per_sec", 2.0)
	v.SetDefault("loop.reasoning_window", 5)

	// -- Safety --
	v.SetDefault("safety.audit_dir", "audit")
	v.SetDefault("safety.audit_mirror_limit", 4096)
	v.SetDefault("safety.undo_capacity", 50)

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "30s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)

	// -- Dispatcher --
	v.SetDefault("dispatcher.max_retries", 3)
	v.SetDefault("dispatcher.initial_backoff", "1s")
	v.SetDefault("dispatcher.max_elapsed_time", "2m")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Sensitive values come from the environment, never the config file.
	v.BindEnv("llm.api_key", "UIPILOT_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if len(cfg.Safety.Rules) == 0 {
		cfg.Safety.Rules = DefaultRiskRules()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Resolver.OCRThreshold < 0 || c.Resolver.OCRThreshold > 1 {
		return fmt.Errorf("resolver.ocr_threshold must be between 0.0 and 1.0")
	}
	if c.Resolver.TemplateThreshold < 0 || c.Resolver.TemplateThreshold > 1 {
		return fmt.Errorf("resolver.template_threshold must be between 0.0 and 1.0")
	}
	if c.Resolver.Matching.FuzzyCutoff < 0 || c.Resolver.Matching.FuzzyCutoff > 1 {
		return fmt.Errorf("resolver.matching.fuzzy_cutoff must be between 0.0 and 1.0")
	}
	if c.Resolver.Matching.MinWordLength < 1 {
		return fmt.Errorf("resolver.matching.min_word_length must be a positive integer")
	}
	if c.Loop.DefaultMaxSteps <= 0 {
		return fmt.Errorf("loop.default_max_steps must be a positive integer")
	}
	if c.Loop.SnapshotRingSize <= 0 {
		return fmt.Errorf("loop.snapshot_ring_size must be a positive integer")
	}
	if c.Loop.HistoryLimit <= 0 {
		return fmt.Errorf("loop.history_limit must be a positive integer")
	}
	if c.Safety.UndoCapacity <= 0 {
		return fmt.Errorf("safety.undo_capacity must be a positive integer")
	}
	if c.Safety.AuditMirrorLimit <= 0 {
		return fmt.Errorf("safety.audit_mirror_limit must be a positive integer")
	}
	for _, r := range c.Safety.Rules {
		switch r.Level {
		case "LOW", "MEDIUM", "HIGH", "CRITICAL":
		default:
			return fmt.Errorf("safety.rules: unknown risk level %q for keyword %q", r.Level, r.Keyword)
		}
	}
	return nil
}
