package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/config"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/logging"
)

func TestLoggerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"
	assert.Equal(t, logging.Config{Level: "warn", OutputPaths: []string{"stdout"}}, loggerConfig(cfg))

	cfg.Logging.Level = ""
	assert.Equal(t, logging.DefaultConfig(), loggerConfig(cfg))

	cfg.Logging.Development = true
	got := loggerConfig(cfg)
	assert.Equal(t, "debug", got.Level)
	assert.True(t, got.Development)

	logger, err := logging.New(got)
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
