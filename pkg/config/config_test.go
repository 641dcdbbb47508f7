package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "emploi_du_temps", cfg.Database.Name)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 30, cfg.Scheduler.LookaheadDays)
	assert.Equal(t, 7, cfg.Scheduler.SuggestionDays)
	assert.Equal(t, 5, cfg.Scheduler.MaxSuggestions)
	assert.False(t, cfg.Quota.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Quota.CacheTTL)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENV", EnvProduction)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("ENABLE_QUOTA_CACHE", "true")
	t.Setenv("QUOTA_CACHE_TTL", "90s")
	t.Setenv("SCHEDULER_SUGGESTION_DAYS", "14")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.True(t, cfg.Quota.CacheEnabled)
	assert.Equal(t, 90*time.Second, cfg.Quota.CacheTTL)
	assert.Equal(t, 14, cfg.Scheduler.SuggestionDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperFallsBackOnBadValues(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("JWT_EXPIRATION", "soon")
	v.Set("SCHEDULER_LOOKAHEAD_DAYS", -3)
	v.Set("JOBS_RETRY_DELAY", "")

	cfg := fromViper(v)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 30, cfg.Scheduler.LookaheadDays)
	assert.Equal(t, time.Second, cfg.Jobs.RetryDelay)
}
