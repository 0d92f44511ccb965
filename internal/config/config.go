// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g.
// SCALPEL_LOCATOR_RESOLVER_PRIMARY_TIMEOUT.
const EnvPrefix = "SCALPEL_LOCATOR"

// Heal store types.
const (
	HealStoreFile     = "file"
	HealStorePostgres = "postgres"
	HealStoreSQLite   = "sqlite"
	HealStoreNone     = "none"
)

// Browser engines.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
	EngineStatic   = "static"
)

// Config holds the whole application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Locators  LocatorsConfig  `mapstructure:"locators" yaml:"locators"`
	Resolver  ResolverConfig  `mapstructure:"resolver" yaml:"resolver"`
	Scoring   ScoringConfig   `mapstructure:"scoring" yaml:"scoring"`
	HealStore HealStoreConfig `mapstructure:"heal_store" yaml:"heal_store"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LocatorsConfig points at the locator definition files.
type LocatorsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// HealedDir holds the overlay files of the file heal store. Empty means
	// <dir>/self_healed.
	HealedDir string `mapstructure:"healed_dir" yaml:"healed_dir"`
}

// HealedPath returns the effective overlay directory.
func (l LocatorsConfig) HealedPath() string {
	if l.HealedDir != "" {
		return l.HealedDir
	}
	return filepath.Join(l.Dir, "self_healed")
}

// ResolverConfig tunes the resolution loop.
type ResolverConfig struct {
	PrimaryTimeout     time.Duration `mapstructure:"primary_timeout" yaml:"primary_timeout"`
	ExplicitTimeoutCap time.Duration `mapstructure:"explicit_timeout_cap" yaml:"explicit_timeout_cap"`
	AlternateTimeout   time.Duration `mapstructure:"alternate_timeout" yaml:"alternate_timeout"`
	StrictTimeout      time.Duration `mapstructure:"strict_timeout" yaml:"strict_timeout"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PersistHealed      bool          `mapstructure:"persist_healed" yaml:"persist_healed"`
	MaxAlternates      int           `mapstructure:"max_alternates" yaml:"max_alternates"`
}

// ScoringConfig carries the scorer weights and candidate generation knobs.
type ScoringConfig struct {
	TagWeight           float64 `mapstructure:"tag_weight" yaml:"tag_weight"`
	ExactAttrWeight     float64 `mapstructure:"exact_attr_weight" yaml:"exact_attr_weight"`
	FuzzyAttrWeight     float64 `mapstructure:"fuzzy_attr_weight" yaml:"fuzzy_attr_weight"`
	TextWeight          float64 `mapstructure:"text_weight" yaml:"text_weight"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	VisibleRequired     bool    `mapstructure:"visible_required" yaml:"visible_required"`
	MinStablePrefix     int     `mapstructure:"min_stable_prefix" yaml:"min_stable_prefix"`
}

// HealStoreConfig selects where healed overlays live.
type HealStoreConfig struct {
	Type        string `mapstructure:"type" yaml:"type"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// BrowserConfig controls the launcher used by the resolve command.
type BrowserConfig struct {
	Engine            string        `mapstructure:"engine" yaml:"engine"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scalpel-locator")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Locators --
	v.SetDefault("locators.dir", "locators")
	v.SetDefault("locators.healed_dir", "")

	// -- Resolver --
	v.SetDefault("resolver.primary_timeout", "6s")
	v.SetDefault("resolver.explicit_timeout_cap", "8s")
	v.SetDefault("resolver.alternate_timeout", "3s")
	v.SetDefault("resolver.strict_timeout", "2s")
	v.SetDefault("resolver.poll_interval", "100ms")
	v.SetDefault("resolver.persist_healed", true)
	v.SetDefault("resolver.max_alternates", 10)

	// -- Scoring --
	v.SetDefault("scoring.tag_weight", 0.35)
	v.SetDefault("scoring.exact_attr_weight", 0.25)
	v.SetDefault("scoring.fuzzy_attr_weight", 0.15)
	v.SetDefault("scoring.text_weight", 0.25)
	v.SetDefault("scoring.similarity_threshold", 0.62)
	v.SetDefault("scoring.visible_required", true)
	v.SetDefault("scoring.min_stable_prefix", 3)

	// -- Heal store --
	v.SetDefault("heal_store.type", HealStoreFile)
	v.SetDefault("heal_store.postgres_url", "")
	v.SetDefault("heal_store.sqlite_path", "healed.db")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.navigation_timeout", "30s")
}

// BindEnv wires environment overrides into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("heal_store.postgres_url", EnvPrefix+"_HEAL_STORE_POSTGRES_URL", "DATABASE_URL")
}

// LoadDotEnv loads a .env file into the process environment when it exists.
// Variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every path setting.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{
		&c.Locators.Dir,
		&c.Locators.HealedDir,
		&c.HealStore.SQLitePath,
		&c.Logger.LogFile,
		&c.Browser.ExecPath,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Locators.Dir == "" {
		return fmt.Errorf("locators.dir is a required configuration field")
	}
	if err := c.Resolver.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.HealStore.Validate(); err != nil {
		return err
	}
	return c.Browser.Validate()
}

func (r ResolverConfig) Validate() error {
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"resolver.primary_timeout", r.PrimaryTimeout},
		{"resolver.explicit_timeout_cap", r.ExplicitTimeoutCap},
		{"resolver.alternate_timeout", r.AlternateTimeout},
		{"resolver.strict_timeout", r.StrictTimeout},
		{"resolver.poll_interval", r.PollInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", d.key)
		}
	}
	if r.MaxAlternates <= 0 {
		return fmt.Errorf("resolver.max_alternates must be a positive integer")
	}
	return nil
}

func (s ScoringConfig) Validate() error {
	weights := []struct {
		key string
		w   float64
	}{
		{"scoring.tag_weight", s.TagWeight},
		{"scoring.exact_attr_weight", s.ExactAttrWeight},
		{"scoring.fuzzy_attr_weight", s.FuzzyAttrWeight},
		{"scoring.text_weight", s.TextWeight},
		{"scoring.similarity_threshold", s.SimilarityThreshold},
	}
	for _, w := range weights {
		if w.w < 0 || w.w > 1 {
			return fmt.Errorf("%s must be between 0 and 1", w.key)
		}
	}
	if s.MinStablePrefix <= 0 {
		return fmt.Errorf("scoring.min_stable_prefix must be a positive integer")
	}
	return nil
}

func (h HealStoreConfig) Validate() error {
	switch h.Type {
	case HealStoreFile, HealStoreNone:
	case HealStorePostgres:
		if h.PostgresURL == "" {
			return fmt.Errorf("heal_store.postgres_url is required for the postgres heal store")
		}
	case HealStoreSQLite:
		if h.SQLitePath == "" {
			return fmt.Errorf("heal_store.sqlite_path is required for the sqlite heal store")
		}
	default:
		return fmt.Errorf("heal_store.type %q is not one of file, postgres, sqlite, none", h.Type)
	}
	return nil
}

func (b BrowserConfig) Validate() error {
	switch b.Engine {
	case EngineChromedp, EngineRod, EngineStatic:
	default:
		return fmt.Errorf("browser.engine %q is not one of chromedp, rod, static", b.Engine)
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	return nil
}
