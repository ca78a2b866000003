package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rewired-gh/flatvalue/internal/valuation"
)

// Config represents the complete application configuration
type Config struct {
	DataGov   DataGovConfig   `mapstructure:"datagov"`
	Valuation ValuationConfig `mapstructure:"valuation"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Export    ExportConfig    `mapstructure:"export"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DataGovConfig holds the public data API configuration
type DataGovConfig struct {
	APIBaseURL      string        `mapstructure:"api_base_url" validate:"required,url"`
	ResourceID      string        `mapstructure:"resource_id" validate:"required"`
	PageSize        int           `mapstructure:"page_size" validate:"min=1,max=10000"`
	MonthsBack      int           `mapstructure:"months_back" validate:"min=1,max=600"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=1"`
	RetryDelayBase  time.Duration `mapstructure:"retry_delay_base"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
}

// ValuationConfig holds the scoring knobs. Field meanings match valuation.Params.
type ValuationConfig struct {
	SqftPerSqm              float64 `mapstructure:"sqft_per_sqm" validate:"gt=0"`
	LeaseTermYears          int     `mapstructure:"lease_term_years" validate:"min=1"`
	DefaultRemainingLease   int     `mapstructure:"default_remaining_lease" validate:"min=0"`
	MinCohortSize           int     `mapstructure:"min_cohort_size" validate:"min=1"`
	LeaseMultiplier         float64 `mapstructure:"lease_multiplier"`
	AccessibilityMultiplier float64 `mapstructure:"accessibility_multiplier"`
	AccessibilityBaseline   int     `mapstructure:"accessibility_baseline" validate:"min=1,max=10"`
	UndervaluedThreshold    float64 `mapstructure:"undervalued_threshold"`
	OvervaluedThreshold     float64 `mapstructure:"overvalued_threshold"`
}

// CacheConfig holds the raw transaction cache configuration
type CacheConfig struct {
	FilePath string        `mapstructure:"file_path" validate:"required"`
	MaxAge   time.Duration `mapstructure:"max_age"` // 0 disables expiry
}

// ExportConfig selects which output files a run writes
type ExportConfig struct {
	OutputDir   string `mapstructure:"output_dir" validate:"required"`
	CSV         bool   `mapstructure:"csv"`
	XLSX        bool   `mapstructure:"xlsx"`
	SummaryJSON bool   `mapstructure:"summary_json"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	TopK           int           `mapstructure:"top_k" validate:"min=1,max=50"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=1"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MetricsConfig holds Prometheus textfile configuration
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"` // empty disables metrics output
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. FLATVALUE_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("FLATVALUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data API defaults
	v.SetDefault("datagov.api_base_url", "https://data.gov.sg")
	v.SetDefault("datagov.resource_id", "f1765b54-a209-4718-8d38-a39237f502b3")
	v.SetDefault("datagov.page_size", 100)
	v.SetDefault("datagov.months_back", 6)
	v.SetDefault("datagov.timeout", "30s")
	v.SetDefault("datagov.max_retries", 3)
	v.SetDefault("datagov.retry_delay_base", "1s")
	v.SetDefault("datagov.request_interval", "500ms")

	// Valuation defaults
	p := valuation.DefaultParams()
	v.SetDefault("valuation.sqft_per_sqm", p.SqftPerSqm)
	v.SetDefault("valuation.lease_term_years", p.LeaseTermYears)
	v.SetDefault("valuation.default_remaining_lease", p.DefaultRemainingLease)
	v.SetDefault("valuation.min_cohort_size", p.MinCohortSize)
	v.SetDefault("valuation.lease_multiplier", p.LeaseMultiplier)
	v.SetDefault("valuation.accessibility_multiplier", p.AccessibilityMultiplier)
	v.SetDefault("valuation.accessibility_baseline", p.AccessibilityBaseline)
	v.SetDefault("valuation.undervalued_threshold", p.UndervaluedThreshold)
	v.SetDefault("valuation.overvalued_threshold", p.OvervaluedThreshold)

	// Cache defaults
	v.SetDefault("cache.file_path", "./data/transactions_cache.json")
	v.SetDefault("cache.max_age", "24h")

	// Export defaults
	v.SetDefault("export.output_dir", "./out")
	v.SetDefault("export.csv", true)
	v.SetDefault("export.xlsx", false)
	v.SetDefault("export.summary_json", true)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.top_k", 10)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Metrics defaults
	v.SetDefault("metrics.textfile_path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Name fields by their config keys so errors read "datagov.page_size".
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	return val
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			key := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				return fmt.Errorf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
			}
			return fmt.Errorf("%s failed %s (got %v)", key, fe.Tag(), fe.Value())
		}
		return err
	}

	// Validate durations
	if c.DataGov.Timeout < time.Second {
		return fmt.Errorf("datagov.timeout must be at least 1 second")
	}
	if c.DataGov.RetryDelayBase < 0 || c.DataGov.RequestInterval < 0 {
		return fmt.Errorf("datagov.retry_delay_base and datagov.request_interval must not be negative")
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative")
	}

	// Validate Valuation config
	if c.Valuation.OvervaluedThreshold > c.Valuation.UndervaluedThreshold {
		return fmt.Errorf("valuation.overvalued_threshold must not exceed valuation.undervalued_threshold")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}

// Params converts the valuation section into engine parameters.
func (v ValuationConfig) Params() valuation.Params {
	return valuation.Params{
		SqftPerSqm:              v.SqftPerSqm,
		LeaseTermYears:          v.LeaseTermYears,
		DefaultRemainingLease:   v.DefaultRemainingLease,
		MinCohortSize:           v.MinCohortSize,
		LeaseMultiplier:         v.LeaseMultiplier,
		AccessibilityMultiplier: v.AccessibilityMultiplier,
		AccessibilityBaseline:   v.AccessibilityBaseline,
		UndervaluedThreshold:    v.UndervaluedThreshold,
		OvervaluedThreshold:     v.OvervaluedThreshold,
	}
}
