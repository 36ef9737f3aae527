package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterSensitiveHeaders(t *testing.T) {
	got := filterSensitiveHeaders(map[string]string{
		"Authorization":  "Bearer sk-secret",
		"X-User-Api-Key": "sk-user",
		"Content-Type":   "application/json",
	})

	assert.Equal(t, map[string]string{
		"Authorization":  "[REDACTED]",
		"X-User-Api-Key": "[REDACTED]",
		"Content-Type":   "application/json",
	}, got)
}
