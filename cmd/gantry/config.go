package main

import (
	"github.com/gantry-ci/gantry/common/logging"
	"github.com/gantry-ci/gantry/common/metrics"
	"github.com/gantry-ci/gantry/mesos"
	"github.com/gantry-ci/gantry/scheduler"
)

// Config holds all configs to run a gantry daemon.
type Config struct {
	Metrics      metrics.Config       `yaml:"metrics"`
	Mesos        mesos.Config         `yaml:"mesos"`
	Scheduler    scheduler.Config     `yaml:"scheduler"`
	SentryConfig logging.SentryConfig `yaml:"sentry"`
	// HTTPPort is the port the agent API, metrics and health endpoints
	// are served on.
	HTTPPort int `yaml:"http_port"`
}
