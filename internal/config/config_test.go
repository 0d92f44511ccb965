// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "scalpel-locator", cfg.Logger.ServiceName)
	assert.Equal(t, "locators", cfg.Locators.Dir)
	assert.Equal(t, filepath.Join("locators", "self_healed"), cfg.Locators.HealedPath())

	assert.Equal(t, 6*time.Second, cfg.Resolver.PrimaryTimeout)
	assert.Equal(t, 8*time.Second, cfg.Resolver.ExplicitTimeoutCap)
	assert.Equal(t, 3*time.Second, cfg.Resolver.AlternateTimeout)
	assert.Equal(t, 2*time.Second, cfg.Resolver.StrictTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Resolver.PollInterval)
	assert.True(t, cfg.Resolver.PersistHealed)
	assert.Equal(t, 10, cfg.Resolver.MaxAlternates)

	assert.Equal(t, 0.35, cfg.Scoring.TagWeight)
	assert.Equal(t, 0.25, cfg.Scoring.ExactAttrWeight)
	assert.Equal(t, 0.15, cfg.Scoring.FuzzyAttrWeight)
	assert.Equal(t, 0.25, cfg.Scoring.TextWeight)
	assert.Equal(t, 0.62, cfg.Scoring.SimilarityThreshold)
	assert.True(t, cfg.Scoring.VisibleRequired)
	assert.Equal(t, 3, cfg.Scoring.MinStablePrefix)

	assert.Equal(t, HealStoreFile, cfg.HealStore.Type)
	assert.Equal(t, EngineChromedp, cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing locators dir", func(c *Config) { c.Locators.Dir = "" }, "locators.dir is a required"},
		{"zero primary timeout", func(c *Config) { c.Resolver.PrimaryTimeout = 0 }, "resolver.primary_timeout must be a positive duration"},
		{"negative poll interval", func(c *Config) { c.Resolver.PollInterval = -time.Second }, "resolver.poll_interval must be a positive duration"},
		{"zero max alternates", func(c *Config) { c.Resolver.MaxAlternates = 0 }, "resolver.max_alternates must be a positive integer"},
		{"weight above one", func(c *Config) { c.Scoring.TagWeight = 1.5 }, "scoring.tag_weight must be between 0 and 1"},
		{"negative threshold", func(c *Config) { c.Scoring.SimilarityThreshold = -0.1 }, "scoring.similarity_threshold must be between 0 and 1"},
		{"zero stable prefix", func(c *Config) { c.Scoring.MinStablePrefix = 0 }, "scoring.min_stable_prefix"},
		{"unknown store", func(c *Config) { c.HealStore.Type = "redis" }, `heal_store.type "redis"`},
		{"postgres without url", func(c *Config) { c.HealStore.Type = HealStorePostgres }, "heal_store.postgres_url is required"},
		{"sqlite without path", func(c *Config) {
			c.HealStore.Type = HealStoreSQLite
			c.HealStore.SQLitePath = ""
		}, "heal_store.sqlite_path is required"},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "webkit" }, `browser.engine "webkit"`},
		{"zero navigation timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }, "browser.navigation_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("accepts every store type when complete", func(t *testing.T) {
		cfg := NewDefaultConfig()
		for _, typ := range []string{HealStoreFile, HealStoreNone, HealStoreSQLite} {
			cfg.HealStore.Type = typ
			assert.NoError(t, cfg.Validate(), typ)
		}
		cfg.HealStore.Type = HealStorePostgres
		cfg.HealStore.PostgresURL = "postgres://localhost/healed"
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
locators:
  dir: /srv/locators
  healed_dir: /srv/healed
resolver:
  primary_timeout: 10s
scoring:
  text_weight: 0.3
heal_store:
  type: sqlite
  sqlite_path: /srv/healed.db
browser:
  engine: rod
  args: ["--lang=en", "window-size=1280,800"]
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "/srv/locators", cfg.Locators.Dir)
		assert.Equal(t, "/srv/healed", cfg.Locators.HealedPath())
		assert.Equal(t, 10*time.Second, cfg.Resolver.PrimaryTimeout)
		assert.Equal(t, 3*time.Second, cfg.Resolver.AlternateTimeout)
		assert.Equal(t, 0.3, cfg.Scoring.TextWeight)
		assert.Equal(t, HealStoreSQLite, cfg.HealStore.Type)
		assert.Equal(t, EngineRod, cfg.Browser.Engine)
		assert.Equal(t, []string{"--lang=en", "window-size=1280,800"}, cfg.Browser.Args)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("resolver.alternate_timeout", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "resolver.alternate_timeout must be a positive duration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("heal_store:\n  type: file\n")))

		t.Setenv("SCALPEL_LOCATOR_HEAL_STORE_TYPE", "postgres")
		t.Setenv("SCALPEL_LOCATOR_HEAL_STORE_POSTGRES_URL", "postgres://envvar/db")
		t.Setenv("SCALPEL_LOCATOR_RESOLVER_PERSIST_HEALED", "false")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, HealStorePostgres, cfg.HealStore.Type)
		assert.Equal(t, "postgres://envvar/db", cfg.HealStore.PostgresURL)
		assert.False(t, cfg.Resolver.PersistHealed)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("locators.dir", "~/locators")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "locators"), cfg.Locators.Dir)
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("loads variables without overriding", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("SCALPEL_LOCATOR_TEST_A=fromfile\nSCALPEL_LOCATOR_TEST_B=fromfile\n"), 0o600))
		t.Setenv("SCALPEL_LOCATOR_TEST_B", "preset")
		t.Cleanup(func() { os.Unsetenv("SCALPEL_LOCATOR_TEST_A") })

		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "fromfile", os.Getenv("SCALPEL_LOCATOR_TEST_A"))
		assert.Equal(t, "preset", os.Getenv("SCALPEL_LOCATOR_TEST_B"))
	})
}
