package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
		hasError bool
	}{
		{"8MB", 8 * 1024 * 1024, false},
		{"512KB", 512 * 1024, false},
		{"1GB", 1 * 1024 * 1024 * 1024, false},
		{"100", 100, false},
		{"1024B", 1024, false},
		{" 4 MB ", 4194304, false},
		{"8mb", 8388608, false},
		{"", 0, false},
		{"invalid", 0, true},
		{"10XB", 0, true},
		{"-10MB", 0, true},
		{"2T", 2 << 40, false},
	}

	for _, tc := range tests {
		val, err := ParseSize(tc.input)
		if tc.hasError {
			assert.Error(t, err, "Expected error for input: %s", tc.input)
		} else {
			assert.NoError(t, err, "Unexpected error for input: %s", tc.input)
			assert.Equal(t, tc.expected, val, "Mismatch for input: %s", tc.input)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		hasError bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"15m", 15 * time.Minute, false},
		{"10s", 10 * time.Second, false},
		{"0", 0, false},
		{"0d", 0, false},
		{"", 0, false},
		{"1d12h", 36 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"1w", 0, true},
		{"-5m", 0, true},
		{"abc", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			val, err := ParseDuration(tc.input)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, val)
		})
	}
}
