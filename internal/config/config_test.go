package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.App.OutputDir)
	assert.Equal(t, "data", cfg.App.DataDir)
	assert.Equal(t, 40, cfg.App.WeeklyTargetCount)
	assert.Equal(t, 55, cfg.App.HumorThreshold)
	assert.Equal(t, 25, cfg.App.MaxReviewsPerPlace)
	assert.Equal(t, 40, cfg.App.MaxPlacesPerRun)
	assert.False(t, cfg.App.AllowRepeatSuggestions)
	assert.Equal(t, 100, cfg.Discovery.MinTotalReviews)
	assert.Equal(t, 120, cfg.Discovery.RequireRecentDays)
	assert.Equal(t, "https://serpapi.com", cfg.SerpAPI.BaseURL)
	assert.Equal(t, 1200, cfg.SerpAPI.DiscoveryDelayMs)
	assert.Equal(t, 1000, cfg.SerpAPI.ReviewDelayMs)
	assert.Equal(t, 20, cfg.SerpAPI.TimeoutSecs)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Scoring.Model)
	assert.Equal(t, DefaultPrompt, cfg.Scoring.Prompt)
	assert.InDelta(t, 0.2, cfg.Scoring.Temperature, 0.001)
	assert.InDelta(t, 0.85, cfg.Curation.SimilarityThreshold, 0.001)
	assert.Equal(t, []string{"json", "markdown", "html"}, cfg.Report.Formats)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
app:
  weekly_target_count: 10
  allow_repeat_suggestions: true
discovery:
  regions: ["Madrid", "Sevilla"]
  categories: ["bar"]
curation:
  theme_limits:
    rude_staff: 2
    misc: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.App.WeeklyTargetCount)
	assert.True(t, cfg.App.AllowRepeatSuggestions)
	assert.Equal(t, []string{"Madrid", "Sevilla"}, cfg.Discovery.Regions)
	assert.Equal(t, map[string]int{"rude_staff": 2, "misc": 5}, cfg.Curation.ThemeLimits)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 55, cfg.App.HumorThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("SCOUT_LOG_LEVEL", "warn")
	t.Setenv("SCOUT_SERPAPI_KEY", "serp-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "serp-secret", cfg.SerpAPI.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("SCOUT_SERPAPI_KEY", "already-set")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCOUT_ANTHROPIC_KEY=from-dotenv\nSCOUT_SERPAPI_KEY=ignored\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SCOUT_ANTHROPIC_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Anthropic.Key)
	assert.Equal(t, "already-set", cfg.SerpAPI.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes struct validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.App.OutputDir = "out"
	cfg.App.DataDir = "data"
	cfg.App.WeeklyTargetCount = 40
	cfg.App.HumorThreshold = 55
	cfg.App.MaxReviewsPerPlace = 25
	cfg.App.MaxPlacesPerRun = 40
	cfg.Discovery.MaxPagesPerQuery = 5
	cfg.SerpAPI.BaseURL = "https://serpapi.com"
	cfg.SerpAPI.TimeoutSecs = 20
	cfg.SerpAPI.Retries = 2
	cfg.Scoring.Model = "claude-haiku-4-5-20251001"
	cfg.Scoring.Prompt = DefaultPrompt
	cfg.Scoring.MaxOutputTokens = 256
	cfg.Scoring.TimeoutSecs = 30
	cfg.Scoring.BreakerThreshold = 5
	cfg.Scoring.BreakerResetSecs = 60
	cfg.Curation.SimilarityThreshold = 0.85
	cfg.Report.Formats = []string{"json"}
	cfg.Store.Driver = "sqlite"
	return cfg
}

func TestValidateShortlist_NoCredentialsNeeded(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("shortlist"))
}

func TestValidateDiscover_MissingFields(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("discover")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serpapi.key is required")
	assert.Contains(t, err.Error(), "discovery.regions")
	assert.NotContains(t, err.Error(), "anthropic.key")
}

func TestValidateCollect_RequiresBothKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.SerpAPI.Key = "serp"

	err := cfg.Validate("collect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant"
	assert.NoError(t, cfg.Validate("collect"))
}

func TestValidate_StructConstraints(t *testing.T) {
	cfg := validDefaults()
	cfg.App.HumorThreshold = 150
	cfg.Report.Formats = []string{"pdf"}
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("shortlist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HumorThreshold")
	assert.Contains(t, err.Error(), "Formats")
	assert.Contains(t, err.Error(), "Driver")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("shortlist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestThemeLimit(t *testing.T) {
	c := CurationConfig{ThemeLimits: map[string]int{"rude_staff": 2}}
	assert.Equal(t, 2, c.ThemeLimit("rude_staff", 40))
	assert.Equal(t, 2, c.ThemeLimit("Rude_Staff", 40))
	assert.Equal(t, 40, c.ThemeLimit("dirty", 40))

	c.DefaultThemeLimit = 7
	assert.Equal(t, 7, c.ThemeLimit("dirty", 40))
}
