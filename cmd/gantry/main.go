package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	_ "go.uber.org/automaxprocs"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/gantry-ci/gantry/agentsvc"
	"github.com/gantry-ci/gantry/common/background"
	"github.com/gantry-ci/gantry/common/buildversion"
	"github.com/gantry-ci/gantry/common/config"
	"github.com/gantry-ci/gantry/common/logging"
	"github.com/gantry-ci/gantry/common/metrics"
	"github.com/gantry-ci/gantry/mesos"
	"github.com/gantry-ci/gantry/scheduler"
)

const (
	_defaultHTTPPort = 5290

	_gaugeRefreshPeriod = 10 * time.Second
)

var (
	version string
	app     = kingpin.New("gantry", "CI build agent scheduler for Mesos")

	debug = app.Flag(
		"debug", "enable debug mode (print full json responses)").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	enableSentry = app.Flag(
		"enable-sentry", "enable logging hook up to sentry").
		Default("false").
		Envar("ENABLE_SENTRY_LOGGING").
		Bool()

	configFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	httpPort = app.Flag(
		"http-port", "Agent API port (http_port override) "+
			"(set $HTTP_PORT to override)").
		Envar("HTTP_PORT").
		Int()

	mesosMaster = app.Flag(
		"mesos-master",
		"Mesos master address (mesos.master override) "+
			"(set $MESOS_MASTER to override)").
		Envar("MESOS_MASTER").
		String()

	mesosSecretFile = app.Flag(
		"mesos-secret-file",
		"Secret file containing one-liner password to connect to Mesos master").
		Default("").
		Envar("MESOS_SECRET_FILE").
		String()

	ciMasterURL = app.Flag(
		"ci-master-url",
		"Base URL of the CI master agents connect back to "+
			"(scheduler.ci_master_url override) (set $CI_MASTER_URL to override)").
		Envar("CI_MASTER_URL").
		String()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(logging.NewSecretsFormatter(&log.JSONFormatter{}))

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	log.WithField("files", *configFiles).Info("Loading gantry config")
	var cfg Config
	if err := config.Parse(&cfg, *configFiles...); err != nil {
		log.WithField("error", err).Fatal("Cannot parse yaml config")
	}

	if *enableSentry {
		logging.ConfigureSentry(&cfg.SentryConfig)
	}

	// now, override any CLI flags in the loaded config.Config
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}

	if *mesosMaster != "" {
		cfg.Mesos.Master = *mesosMaster
	}

	if *mesosSecretFile != "" {
		if cfg.Mesos.Framework == nil {
			cfg.Mesos.Framework = &mesos.FrameworkConfig{}
		}
		cfg.Mesos.Framework.SecretFile = *mesosSecretFile
	}

	if *ciMasterURL != "" {
		cfg.Scheduler.CIMasterURL = *ciMasterURL
	}

	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = _defaultHTTPPort
	}

	// Re-arm the formatter with the literal secret so the credential can
	// never leak through a log field.
	secret, err := mesos.LoadSecret(&cfg.Mesos)
	if err != nil {
		log.WithField("error", err).Fatal("Cannot load mesos secret file")
	}
	if secret != "" {
		log.SetFormatter(logging.NewSecretsFormatter(&log.JSONFormatter{}, secret))
	}

	log.WithField("config", cfg).Debug("Loaded gantry config")

	rootScope, scopeCloser, mux := metrics.InitMetricScope(
		&cfg.Metrics,
		"gantry",
		metrics.TallyFlushInterval,
	)

	mux.HandleFunc(
		logging.LevelOverwrite,
		logging.LevelOverwriteHandler(initialLevel))

	mux.HandleFunc(buildversion.Get, buildversion.Handler(version))

	rootScope.Counter("boot").Inc(1)

	core := scheduler.New(
		&cfg.Scheduler,
		rootScope,
		mesos.NewDriverFactory(&cfg.Mesos),
	)

	agentsvc.NewHandler(core, rootScope).Register(mux)

	backgroundManager := background.NewManager()
	if err := backgroundManager.RegisterWorks(
		background.Work{
			Name: "scheduler-gauges",
			Func: func(_ *atomic.Bool) {
				core.RefreshGauges()
			},
			Period: _gaugeRefreshPeriod,
		},
	); err != nil {
		log.WithField("error", err).Fatal("Cannot register background works")
	}

	if err := core.Start(); err != nil {
		log.WithField("error", err).Fatal("Cannot start mesos scheduler session")
	}

	backgroundManager.Start()

	log.WithFields(log.Fields{
		"httpPort": cfg.HTTPPort,
		"master":   cfg.Mesos.Master,
	}).Info("Started gantry")

	err = http.ListenAndServe(fmt.Sprintf(":%d", cfg.HTTPPort), mux)

	// The daemon dies with its listener.
	log.WithField("error", err).Error("HTTP server exited")
	backgroundManager.Stop()
	core.Stop()
	scopeCloser.Close()
	os.Exit(1)
}
