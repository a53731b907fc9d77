package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SAVE_COOLDOWN", "")
	t.Setenv("STATS_SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Second, cfg.SaveCooldown)
	assert.Equal(t, 10*time.Minute, cfg.StatsSessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("SAVE_COOLDOWN", "250ms")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 250*time.Millisecond, cfg.SaveCooldown)
}

func TestGetDurationRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Duration
	}{
		{"", 3 * time.Second},
		{"soon", 3 * time.Second},
		{"-1s", 3 * time.Second},
		{"0s", 3 * time.Second},
		{"1500ms", 1500 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.value)
			assert.Equal(t, tc.expected, getDuration("TEST_DURATION", 3*time.Second))
		})
	}
}
