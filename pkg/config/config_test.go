package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 500, cfg.Scheduler.MaxTasks)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_CACHE_TTL", "90s")
	v.Set("SCHEDULER_MAX_CELLS", 42)
	v.Set("ALLOWED_ORIGINS", "https://ops.example.com, ,https://fleet.example.com")
	v.Set("JWT_EXPIRATION", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.CacheTTL)
	assert.Equal(t, 42, cfg.Scheduler.MaxCells)
	assert.Equal(t, []string{"https://ops.example.com", "https://fleet.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}
