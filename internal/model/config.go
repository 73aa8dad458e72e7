package model

import "time"

// Config is the complete ClaimSense configuration.
// Values are layered by viper: flags > CLAIMSENSE_* env > config file > DefaultConfig.
type Config struct {
	Rules        RulesConfig        `yaml:"rules" mapstructure:"rules"`
	Baseline     BaselineConfig     `yaml:"baseline" mapstructure:"baseline"`
	Analytics    AnalyticsConfig    `yaml:"analytics" mapstructure:"analytics"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
}

// RulesConfig controls which rules the catalog contains and their thresholds
type RulesConfig struct {
	ChargeMultiplier       float64        `yaml:"charge_multiplier" mapstructure:"charge_multiplier"`             // Anomaly threshold against the baseline average
	KnownCodes             []string       `yaml:"known_codes,omitempty" mapstructure:"known_codes"`               // Empty uses the built-in reference list
	FormatOnly             bool           `yaml:"format_only" mapstructure:"format_only"`                         // Skip the known-code check entirely
	DistinguishingModifier string         `yaml:"distinguishing_modifier" mapstructure:"distinguishing_modifier"` // Required on configured pairs
	ModifierPairs          []ModifierPair `yaml:"modifier_pairs" mapstructure:"modifier_pairs"`
	CompletenessChecks     bool           `yaml:"completeness_checks" mapstructure:"completeness_checks"` // Missing-field rules, off by default
}

// ModifierPair is two procedure codes that need a distinguishing modifier when billed together
type ModifierPair struct {
	First  string `yaml:"first" mapstructure:"first"`
	Second string `yaml:"second" mapstructure:"second"`
}

// BaselineConfig points at the reference averages used by the charge anomaly rule
type BaselineConfig struct {
	File     string             `yaml:"file,omitempty" mapstructure:"file"`         // YAML map of code -> average charge
	Averages map[string]float64 `yaml:"averages,omitempty" mapstructure:"averages"` // Inline averages, merged under File

	FromHistory bool `yaml:"from_history" mapstructure:"from_history"` // Fall back to averages over stored claims
	MinSamples  int  `yaml:"min_samples" mapstructure:"min_samples"`   // Lines required before a historical average is trusted
}

// AnalyticsConfig controls aggregation
type AnalyticsConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // IANA name used for per-day buckets
}

// StoreConfig controls the claim store
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // SQLite database file
}

// CacheConfig controls baseline lookup caching
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir     string        `yaml:"dir,omitempty" mapstructure:"dir"` // Disk layer, empty for memory only
}

// ConcurrencyConfig controls parallelism
type ConcurrencyConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`           // Claims evaluated at once in a batch
	RuleWorkers int `yaml:"rule_workers" mapstructure:"rule_workers"` // Rules evaluated at once per claim, <=1 is sequential
}

// RateLimitingConfig throttles batch evaluation per payer
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables limiting
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`

	Payers map[string]float64 `yaml:"payers,omitempty" mapstructure:"payers"` // Per-payer requests per second
}

// LoggingConfig controls the logrus logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// LLMConfig controls optional reviewer notes
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "openai" or "" (disabled)
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			ChargeMultiplier:       2.0,
			DistinguishingModifier: "59",
			ModifierPairs: []ModifierPair{
				{First: "97110", Second: "97140"}, // Therapeutic exercise + manual therapy
				{First: "97140", Second: "97530"},
				{First: "20610", Second: "20550"},
			},
		},
		Baseline: BaselineConfig{
			MinSamples: 5,
		},
		Analytics: AnalyticsConfig{
			Timezone: "UTC",
		},
		Store: StoreConfig{
			Path: "claimsense.db",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:     4,
			RuleWorkers: 1,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 0,
			BurstSize:         5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 500,
		},
	}
}
