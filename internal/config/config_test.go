package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CYAN_RUNTIME_DIR", "CYANC_MAX_ERRORS",
		"CYANC_INLINE_INST_LIMIT", "CYANC_INLINE_CALLER_LIMIT", "CYANC_DEBUG",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()
	assert.Equal(t, "", cfg.RuntimeDir)
	assert.Equal(t, defaultMaxErrors, cfg.MaxErrors)
	assert.Equal(t, defaultInlineInstLimit, cfg.InlineInstLimit)
	assert.Equal(t, defaultInlineCallerLimit, cfg.InlineCallerLimit)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CYAN_RUNTIME_DIR", "/opt/cyan/runtime")
	t.Setenv("CYANC_MAX_ERRORS", "5")
	t.Setenv("CYANC_INLINE_INST_LIMIT", "64")
	t.Setenv("CYANC_INLINE_CALLER_LIMIT", "1")
	t.Setenv("CYANC_DEBUG", "true")

	cfg := Load()
	assert.Equal(t, "/opt/cyan/runtime", cfg.RuntimeDir)
	assert.Equal(t, 5, cfg.MaxErrors)
	assert.Equal(t, 64, cfg.InlineInstLimit)
	assert.Equal(t, 1, cfg.InlineCallerLimit)
	assert.True(t, cfg.Debug)
}
