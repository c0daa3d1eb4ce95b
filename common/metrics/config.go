// Copyright (c) 2019 The Gantry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/cactus/go-statsd-client/statsd"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	tallyprom "github.com/uber-go/tally/prometheus"
	tallystatsd "github.com/uber-go/tally/statsd"
)

// TallyFlushInterval is the flush interval for the root tally scope.
const TallyFlushInterval = 1 * time.Second

// Config controls which metrics backend the root scope reports to. At most
// one backend is active; with none enabled a noop statsd client is used so
// that instrumented code never has to care.
type Config struct {
	Prometheus *prometheusConfig `yaml:"prometheus"`
	Statsd     *statsdConfig     `yaml:"statsd"`
}

type prometheusConfig struct {
	Enable bool `yaml:"enable"`
}

type statsdConfig struct {
	Enable   bool   `yaml:"enable"`
	Endpoint string `yaml:"endpoint"`
}

// InitMetricScope initializes a root scope and its closer, plus an HTTP mux
// carrying the metrics exposition and health endpoints.
func InitMetricScope(
	cfg *Config,
	rootMetricScope string,
	metricFlushInterval time.Duration) (tally.Scope, io.Closer, *nethttp.ServeMux) {
	mux := nethttp.NewServeMux()
	var reporter tally.StatsReporter
	var promHandler nethttp.Handler
	metricSeparator := "."
	if cfg.Prometheus != nil && cfg.Prometheus.Enable {
		// tally panics on "-" in scope names, and prometheus names use "_"
		rootMetricScope = strings.Replace(rootMetricScope, "-", "_", -1)
		metricSeparator = "_"
		promReporter := tallyprom.NewReporter(nil)
		reporter = promReporter
		promHandler = promReporter.HTTPHandler()
	} else if cfg.Statsd != nil && cfg.Statsd.Enable {
		log.WithField("endpoint", cfg.Statsd.Endpoint).
			Info("Metrics configured with statsd endpoint")
		c, err := statsd.NewClient(cfg.Statsd.Endpoint, "")
		if err != nil {
			log.WithError(err).Fatal("Unable to set up statsd client")
		}
		reporter = tallystatsd.NewReporter(c, tallystatsd.NewOptions())
	} else {
		log.Warn("No metrics backend configured, using noop statsd client")
		c, _ := statsd.NewNoopClient()
		reporter = tallystatsd.NewReporter(c, tallystatsd.NewOptions())
	}

	if promHandler != nil {
		log.Info("Serving prometheus metrics at /metrics")
		mux.Handle("/metrics", promHandler)
	}
	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	metricScope, scopeCloser := tally.NewRootScope(
		rootMetricScope,
		map[string]string{},
		reporter,
		metricFlushInterval,
		metricSeparator)
	return metricScope, scopeCloser, mux
}
