package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig         `yaml:"store" mapstructure:"store"`
	Places    PlacesConfig        `yaml:"places" mapstructure:"places"`
	Anthropic AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Browser   BrowserConfig       `yaml:"browser" mapstructure:"browser"`
	Crawl     CrawlConfig         `yaml:"crawl" mapstructure:"crawl"`
	Select    SelectConfig        `yaml:"select" mapstructure:"select"`
	Extract   ExtractConfig       `yaml:"extract" mapstructure:"extract"`
	Relevance RelevanceConfig     `yaml:"relevance" mapstructure:"relevance"`
	Profile   model.TargetProfile `yaml:"profile" mapstructure:"profile"`
	Dedupe    DedupeConfig        `yaml:"dedupe" mapstructure:"dedupe"`
	Pipeline  PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig        `yaml:"server" mapstructure:"server"`
	Log       LogConfig           `yaml:"log" mapstructure:"log"`
	Pricing   PricingConfig       `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PlacesConfig holds places API settings.
type PlacesConfig struct {
	Key             string  `yaml:"key" mapstructure:"key"`
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	Language        string  `yaml:"language" mapstructure:"language"`
	MaxPages        int     `yaml:"max_pages" mapstructure:"max_pages"`
	PageTokenDelayS int     `yaml:"page_token_delay_secs" mapstructure:"page_token_delay_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// BrowserConfig configures the headless browser sessions.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath          string `yaml:"exec_path" mapstructure:"exec_path"`
	NavTimeoutSecs    int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	ScreenshotQuality int    `yaml:"screenshot_quality" mapstructure:"screenshot_quality"`
}

// CrawlConfig configures page discovery.
type CrawlConfig struct {
	MaxPagesTotal   int     `yaml:"max_pages_total" mapstructure:"max_pages_total"`
	MaxSitemapURLs  int     `yaml:"max_sitemap_urls" mapstructure:"max_sitemap_urls"`
	MaxNavLinks     int     `yaml:"max_nav_links" mapstructure:"max_nav_links"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PerHostRPS      float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	VerifyTimeoutSecs int   `yaml:"verify_timeout_secs" mapstructure:"verify_timeout_secs"`
}

// SelectConfig configures AI-guided page selection.
type SelectConfig struct {
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
}

// ExtractConfig configures the multi-strategy extractor.
type ExtractConfig struct {
	Weights             model.ConfidenceWeights `yaml:"weights" mapstructure:"weights"`
	EscalationThreshold int                     `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	PageTimeoutSecs     int                     `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	VisionTimeoutSecs   int                     `yaml:"vision_timeout_secs" mapstructure:"vision_timeout_secs"`
}

// RelevanceWeights holds the rule-based fallback point allocation. The six
// dimensions sum to 100 so the fallback reports the same scale as the AI path.
type RelevanceWeights struct {
	Industry         int `yaml:"industry" mapstructure:"industry"`
	Location         int `yaml:"location" mapstructure:"location"`
	Quality          int `yaml:"quality" mapstructure:"quality"`
	OnlinePresence   int `yaml:"online_presence" mapstructure:"online_presence"`
	DataCompleteness int `yaml:"data_completeness" mapstructure:"data_completeness"`
	ReviewRecency    int `yaml:"review_recency" mapstructure:"review_recency"`
}

// RelevanceConfig configures relevance scoring.
type RelevanceConfig struct {
	Weights     RelevanceWeights `yaml:"weights" mapstructure:"weights"`
	Threshold   int              `yaml:"threshold" mapstructure:"threshold"`
	TimeoutSecs int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DedupeConfig configures campaign linking and extraction reuse.
type DedupeConfig struct {
	ReuseTTLHours int `yaml:"reuse_ttl_hours" mapstructure:"reuse_ttl_hours"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	MaxConcurrentCandidates int     `yaml:"max_concurrent_candidates" mapstructure:"max_concurrent_candidates"`
	MinRating               float64 `yaml:"min_rating" mapstructure:"min_rating"`
	InactivityDays          int     `yaml:"inactivity_days" mapstructure:"inactivity_days"`
	InactivityMinRating     float64 `yaml:"inactivity_min_rating" mapstructure:"inactivity_min_rating"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic       map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	PlacesPerSearch float64                 `yaml:"places_per_search" mapstructure:"places_per_search"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.language", "en")
	v.SetDefault("places.max_pages", 3)
	v.SetDefault("places.page_token_delay_secs", 2)
	v.SetDefault("places.requests_per_sec", 2)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 20)
	v.SetDefault("browser.screenshot_quality", 70)
	v.SetDefault("crawl.max_pages_total", 100)
	v.SetDefault("crawl.max_sitemap_urls", 50)
	v.SetDefault("crawl.max_nav_links", 50)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.per_host_rps", 2)
	v.SetDefault("crawl.verify_timeout_secs", 15)
	v.SetDefault("select.max_pages", 7)
	v.SetDefault("extract.weights.email", 30)
	v.SetDefault("extract.weights.phone", 25)
	v.SetDefault("extract.weights.description", 20)
	v.SetDefault("extract.weights.services", 15)
	v.SetDefault("extract.weights.contact_name", 10)
	v.SetDefault("extract.weights.services_min", 3)
	v.SetDefault("extract.escalation_threshold", 50)
	v.SetDefault("extract.page_timeout_secs", 25)
	v.SetDefault("extract.vision_timeout_secs", 45)
	v.SetDefault("relevance.weights.industry", 36)
	v.SetDefault("relevance.weights.location", 18)
	v.SetDefault("relevance.weights.quality", 18)
	v.SetDefault("relevance.weights.online_presence", 9)
	v.SetDefault("relevance.weights.data_completeness", 9)
	v.SetDefault("relevance.weights.review_recency", 10)
	v.SetDefault("relevance.threshold", model.RelevanceThreshold)
	v.SetDefault("relevance.timeout_secs", 30)
	v.SetDefault("dedupe.reuse_ttl_hours", 720)
	v.SetDefault("pipeline.max_concurrent_candidates", 4)
	v.SetDefault("pipeline.min_rating", 4.0)
	v.SetDefault("pipeline.inactivity_days", 180)
	v.SetDefault("pipeline.inactivity_min_rating", 3.5)
	v.SetDefault("pricing.places_per_search", 0.032)
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-haiku-4-5-20251001": map[string]any{
			"input": 0.80, "output": 4.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1,
		},
		"claude-sonnet-4-5-20250929": map[string]any{
			"input": 3.00, "output": 15.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1,
		},
	})

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
