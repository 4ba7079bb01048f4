package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Help(t *testing.T) {
	args := []string{"ingestord", "--help"}
	var stdout, stderr bytes.Buffer

	originalRunServer := startServer
	defer func() { startServer = originalRunServer }()
	startServer = func() int { return 0 }

	exitCode := Run(args, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "Usage: ingestord")
}

func TestRun_Unknown(t *testing.T) {
	args := []string{"ingestord", "unknown-command"}
	var stdout, stderr bytes.Buffer

	originalRunServer := startServer
	defer func() { startServer = originalRunServer }()
	called := false
	startServer = func() int {
		called = true
		return 0
	}

	exitCode := Run(args, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "Unknown command")
	assert.True(t, called, "expected startServer to be called")
}

func TestRun_NoArgsDefaultsToServer(t *testing.T) {
	args := []string{"ingestord"}
	var stdout, stderr bytes.Buffer

	originalRunServer := startServer
	defer func() { startServer = originalRunServer }()
	called := false
	startServer = func() int {
		called = true
		return 0
	}

	exitCode := Run(args, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.True(t, called)
}

func TestRun_HealthFailsWithoutRunningServer(t *testing.T) {
	t.Setenv("HEALTH_ADDR", ":19999")

	args := []string{"ingestord", "health"}
	var stdout, stderr bytes.Buffer

	exitCode := Run(args, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stdout.String(), "Health check failed")
}
