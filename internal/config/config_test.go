package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"short secret in release": func(c *Config) { c.Server.Mode = "release"; c.JWT.Secret = "short" },
		"zero multiplier":         func(c *Config) { c.Progress.TimeCapMultiplier = 0 },
		"zero delta":              func(c *Config) { c.Progress.MaxDeltaSec = 0 },
		"zero open exams":         func(c *Config) { c.Exam.SelfServiceMaxOpen = 0 },
		"zero retest size":        func(c *Config) { c.Exam.RetestDefaultSize = 0 },
		"unknown driver":          func(c *Config) { c.Database.Driver = "oracle" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("database:\n  driver: sqlite\n  path: test.db\njwt:\n  secret: dev\n  expire_hours: 2\nprogress:\n  max_delta_sec: 45\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 45, cfg.Progress.MaxDeltaSec)
	assert.Equal(t, 1.5, cfg.Progress.TimeCapMultiplier)
	assert.Equal(t, 20, cfg.Exam.RetestDefaultSize)
	assert.Equal(t, 30, cfg.RateLimit.HeartbeatsPerMinute)
	assert.Equal(t, "2h0m0s", cfg.JWT.ExpireTime.String())
}
