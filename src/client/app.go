package client

import (
	"fmt"
	"io"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
	"github.com/apimgr/weather-probe/src/nws"
	"github.com/apimgr/weather-probe/src/weather"
)

// app holds everything a command needs
type app struct {
	config     *CLIConfig
	configPath string
	logger     *logging.Logger
	nws        *nws.Client
	weather    *weather.Service
	formatter  *Formatter
	stdout     io.Writer
}

// newApp wires the logger, NWS client and weather service from config
func newApp(config *CLIConfig, configPath string, stdout io.Writer) (*app, error) {
	level, err := logging.ParseLevel(config.Logging.Level)
	if err != nil {
		return nil, NewConfigError(fmt.Sprintf("logging.level: %v", err))
	}
	if config.Debug {
		level = logging.LevelDebug
	}

	logger, err := logging.NewFileLogger(config.Logging.File, level)
	if err != nil {
		return nil, NewConfigError(err.Error())
	}

	client := nws.New(
		nws.WithBaseURL(config.Server.BaseURL),
		nws.WithUserAgent(config.Server.UserAgent),
		nws.WithTimeout(config.TimeoutDuration()),
		nws.WithCacheTTL(config.CacheTTL()),
		nws.WithLogger(logger),
	)

	svc := weather.NewService(client,
		weather.WithLogger(logger),
		weather.WithStrict(config.Strict),
	)

	metrics.SetAppInfo(Version, GitCommit, BuildDate)

	return &app{
		config:     config,
		configPath: configPath,
		logger:     logger,
		nws:        client,
		weather:    svc,
		formatter:  NewFormatter(config.Output.Format, ColorEnabled(config.Output.Color)),
		stdout:     stdout,
	}, nil
}

// close flushes the metrics textfile and closes the log file
func (a *app) close() error {
	var firstErr error
	if a.config.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(a.config.Metrics.Textfile); err != nil {
			a.logger.Error("%v", err)
			firstErr = err
		}
	}
	if err := a.logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
