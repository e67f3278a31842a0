package config

import (
	"errors"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	App       AppConfig       `yaml:"app" mapstructure:"app"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi" mapstructure:"serpapi"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Safety    SafetyConfig    `yaml:"safety" mapstructure:"safety"`
	Curation  CurationConfig  `yaml:"curation" mapstructure:"curation"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AppConfig holds run-wide caps and output locations.
type AppConfig struct {
	OutputDir              string `yaml:"output_dir" mapstructure:"output_dir" validate:"required"`
	DataDir                string `yaml:"data_dir" mapstructure:"data_dir" validate:"required"`
	WeeklyTargetCount      int    `yaml:"weekly_target_count" mapstructure:"weekly_target_count" validate:"gte=1"`
	HumorThreshold         int    `yaml:"humor_threshold" mapstructure:"humor_threshold" validate:"gte=0,lte=100"`
	MaxReviewsPerPlace     int    `yaml:"max_reviews_per_place" mapstructure:"max_reviews_per_place" validate:"gte=1"`
	MaxPlacesPerRun        int    `yaml:"max_places_per_run" mapstructure:"max_places_per_run" validate:"gte=1"`
	MaxReviewsPerRun       int    `yaml:"max_reviews_per_run" mapstructure:"max_reviews_per_run" validate:"gte=0"`
	AllowRepeatSuggestions bool   `yaml:"allow_repeat_suggestions" mapstructure:"allow_repeat_suggestions"`
}

// DiscoveryConfig configures venue discovery.
type DiscoveryConfig struct {
	Regions           []string `yaml:"regions" mapstructure:"regions"`
	Categories        []string `yaml:"categories" mapstructure:"categories"`
	MinTotalReviews   int      `yaml:"min_total_reviews" mapstructure:"min_total_reviews" validate:"gte=0"`
	RequireRecentDays int      `yaml:"require_recent_days" mapstructure:"require_recent_days" validate:"gte=0"`
	MaxPagesPerQuery  int      `yaml:"max_pages_per_query" mapstructure:"max_pages_per_query" validate:"gte=1"`
}

// SerpAPIConfig holds SerpApi credentials and request pacing.
type SerpAPIConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	HL               string `yaml:"hl" mapstructure:"hl"`
	GL               string `yaml:"gl" mapstructure:"gl"`
	DiscoveryDelayMs int    `yaml:"discovery_delay_ms" mapstructure:"discovery_delay_ms" validate:"gte=0"`
	ReviewDelayMs    int    `yaml:"review_delay_ms" mapstructure:"review_delay_ms" validate:"gte=0"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	Retries          int    `yaml:"retries" mapstructure:"retries" validate:"gte=1"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScoringConfig configures the humor scoring oracle.
type ScoringConfig struct {
	Model            string  `yaml:"model" mapstructure:"model" validate:"required"`
	Prompt           string  `yaml:"prompt" mapstructure:"prompt" validate:"required"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=1"`
	MaxOutputTokens  int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens" validate:"gte=1"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold" validate:"gte=1"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs" validate:"gte=1"`
}

// SafetyConfig holds the keyword sets of the safety classifier.
type SafetyConfig struct {
	PIIPatterns        []string `yaml:"pii_patterns" mapstructure:"pii_patterns"`
	SensitiveKeywords  []string `yaml:"sensitive_keywords" mapstructure:"sensitive_keywords"`
	AccusationKeywords []string `yaml:"accusation_keywords" mapstructure:"accusation_keywords"`
	LexiconPath        string   `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// CurationConfig configures shortlist selection.
type CurationConfig struct {
	ThemeLimits         map[string]int `yaml:"theme_limits" mapstructure:"theme_limits" validate:"dive,gte=0"`
	DefaultThemeLimit   int            `yaml:"default_theme_limit" mapstructure:"default_theme_limit" validate:"gte=0"`
	SimilarityThreshold float64        `yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
}

// ReportConfig selects the shortlist export formats.
type ReportConfig struct {
	Formats []string `yaml:"formats" mapstructure:"formats" validate:"dive,oneof=json markdown html xlsx docx"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultPrompt is the humor scoring prompt. {rating}, {review_text} and
// {owner_reply} are substituted per review.
const DefaultPrompt = `Rate ONE individual review and return ONLY a humor score.
Return an integer from 0 to 100 where 0 is not funny at all and 100 is hilarious.
Favor one-star reviews when they are funny.
Our humor is irreverent: insults, absurd situations and funny anecdotes.
If the owner reply is funny and not copy-pasted, raise the score.
Return JSON with score (0-100), notes (short explanation) and tags (list of themes).
If nothing is funny, give a low score.
Do not include explanations or extra text.

STARS:
{rating}

REVIEW:
{review_text}

OWNER REPLY:
{owner_reply}`

// Load reads configuration from file and environment. A .env file in the
// working directory is exported first without overriding variables that are
// already set.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("app.output_dir", "out")
	v.SetDefault("app.data_dir", "data")
	v.SetDefault("app.weekly_target_count", 40)
	v.SetDefault("app.humor_threshold", 55)
	v.SetDefault("app.max_reviews_per_place", 25)
	v.SetDefault("app.max_places_per_run", 40)
	v.SetDefault("app.max_reviews_per_run", 0)
	v.SetDefault("app.allow_repeat_suggestions", false)
	v.SetDefault("discovery.regions", []string{})
	v.SetDefault("discovery.categories", []string{})
	v.SetDefault("discovery.min_total_reviews", 100)
	v.SetDefault("discovery.require_recent_days", 120)
	v.SetDefault("discovery.max_pages_per_query", 5)
	v.SetDefault("serpapi.key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.hl", "es")
	v.SetDefault("serpapi.gl", "us")
	v.SetDefault("serpapi.discovery_delay_ms", 1200)
	v.SetDefault("serpapi.review_delay_ms", 1000)
	v.SetDefault("serpapi.timeout_secs", 20)
	v.SetDefault("serpapi.retries", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("scoring.model", "claude-haiku-4-5-20251001")
	v.SetDefault("scoring.prompt", DefaultPrompt)
	v.SetDefault("scoring.temperature", 0.2)
	v.SetDefault("scoring.max_output_tokens", 256)
	v.SetDefault("scoring.timeout_secs", 30)
	v.SetDefault("scoring.breaker_threshold", 5)
	v.SetDefault("scoring.breaker_reset_secs", 60)
	v.SetDefault("safety.pii_patterns", []string{`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`, `[\w.+-]+@[\w-]+\.[\w.]+`})
	v.SetDefault("safety.sensitive_keywords", []string{})
	v.SetDefault("safety.accusation_keywords", []string{})
	v.SetDefault("safety.lexicon_path", "")
	v.SetDefault("curation.theme_limits", map[string]int{})
	v.SetDefault("curation.default_theme_limit", 0)
	v.SetDefault("curation.similarity_threshold", 0.85)
	v.SetDefault("report.formats", []string{"json", "markdown", "html"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("metrics.textfile_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// Validate checks struct constraints and the credentials required by the
// given command scope ("discover", "collect", "weekly"; anything else only
// checks the struct).
func (c *Config) Validate(scope string) error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fe.Namespace()+" fails "+fe.Tag())
			}
		} else {
			return eris.Wrap(err, "config: validate")
		}
	}

	needSerp := scope == "discover" || scope == "collect" || scope == "weekly"
	needAnthropic := scope == "collect" || scope == "weekly"

	if needSerp && c.SerpAPI.Key == "" {
		problems = append(problems, "serpapi.key is required (SCOUT_SERPAPI_KEY)")
	}
	if needAnthropic && c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required (SCOUT_ANTHROPIC_KEY)")
	}
	if (scope == "discover" || scope == "weekly") && (len(c.Discovery.Regions) == 0 || len(c.Discovery.Categories) == 0) {
		problems = append(problems, "discovery.regions and discovery.categories must not be empty")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration for %s: %s", scope, strings.Join(problems, "; "))
	}
	return nil
}

// ThemeLimit returns the quota of a theme (keys are matched lower-cased,
// as viper stores them), falling back to the default
// theme limit and then the weekly target.
func (c CurationConfig) ThemeLimit(theme string, weeklyTarget int) int {
	if limit, ok := c.ThemeLimits[strings.ToLower(theme)]; ok {
		return limit
	}
	if c.DefaultThemeLimit > 0 {
		return c.DefaultThemeLimit
	}
	return weeklyTarget
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
