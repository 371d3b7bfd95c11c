package client

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Execute is the main entry point for the CLI
func Execute(ctx context.Context) error {
	return Run(ctx, os.Args[1:], os.Stdout)
}

// globalFlags are accepted before the command name
type globalFlags struct {
	config      string
	baseURL     string
	userAgent   string
	output      string
	noColor     bool
	timeout     int
	strict      bool
	metricsFile string
	debug       bool
	version     bool
	help        bool
}

// Run parses args and runs the selected command, writing results to stdout
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	var gf globalFlags

	flagSet := flag.NewFlagSet("weather-probe", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&gf.config, "config", "", "Config file path or profile name (default: ~/.config/apimgr/weather-probe/cli.yml)")
	flagSet.StringVar(&gf.baseURL, "base-url", "", "NWS API base URL (overrides config)")
	flagSet.StringVar(&gf.userAgent, "user-agent", "", "User-Agent sent to the NWS API (overrides config)")
	flagSet.StringVar(&gf.output, "output", "", "Output format: plain, json (overrides config)")
	flagSet.BoolVar(&gf.noColor, "no-color", false, "Disable colored output")
	flagSet.IntVar(&gf.timeout, "timeout", 0, "Request timeout in seconds (overrides config)")
	flagSet.BoolVar(&gf.strict, "strict", false, "Fail on upstream errors instead of printing fallback messages")
	flagSet.StringVar(&gf.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	flagSet.BoolVar(&gf.debug, "debug", false, "Enable debug logging")
	flagSet.BoolVar(&gf.version, "version", false, "Show version information")
	flagSet.BoolVar(&gf.help, "help", false, "Show help")

	if err := flagSet.Parse(args); err != nil {
		return NewUsageError(err.Error())
	}

	if gf.version {
		printVersion(stdout)
		return nil
	}
	if gf.help {
		printUsage(stdout)
		return nil
	}

	command := "run"
	var commandArgs []string
	if flagSet.NArg() > 0 {
		command = flagSet.Arg(0)
		commandArgs = flagSet.Args()[1:]
	}

	// Commands that do not need a loaded config
	switch command {
	case "version":
		printVersion(stdout)
		return nil
	case "help":
		printUsage(stdout)
		return nil
	case "config":
		return handleConfigCommand(gf.config, commandArgs, stdout)
	}

	config, err := LoadConfig(gf.config)
	if err != nil {
		return err
	}
	if err := gf.apply(config); err != nil {
		return err
	}

	a, err := newApp(config, ResolveConfigPath(gf.config), stdout)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "run":
		return wrapExit(a.runProbe(ctx, TargetFromConfig(config)))
	case "forecast":
		return handleForecastCommand(ctx, a, commandArgs)
	case "alerts":
		return handleAlertsCommand(ctx, a, commandArgs)
	case "watch":
		return handleWatchCommand(ctx, a, commandArgs)
	case "serve":
		return handleServeCommand(ctx, a, commandArgs)
	case "tui":
		return runTUI(ctx, a)
	default:
		return NewUsageError(fmt.Sprintf("unknown command: %s", command))
	}
}

// apply overrides config values with explicitly set flags
func (gf *globalFlags) apply(config *CLIConfig) error {
	if gf.baseURL != "" {
		config.Server.BaseURL = strings.TrimSuffix(gf.baseURL, "/")
	}
	if gf.userAgent != "" {
		config.Server.UserAgent = gf.userAgent
	}
	if gf.output != "" {
		config.Output.Format = gf.output
	}
	if gf.noColor {
		config.Output.Color = "never"
	}
	if gf.timeout > 0 {
		config.Server.Timeout = fmt.Sprintf("%ds", gf.timeout)
	}
	if gf.strict {
		config.Strict = true
	}
	if gf.metricsFile != "" {
		config.Metrics.Textfile = gf.metricsFile
	}
	if gf.debug {
		config.Debug = true
	}
	if err := config.Validate(); err != nil {
		return NewUsageError(err.Error())
	}
	return nil
}

// wrapExit converts weather and nws errors into exit codes
func wrapExit(err error) error {
	if err == nil {
		return nil
	}
	return ExitErrorFor(err)
}

// printUsage prints the usage information
func printUsage(w io.Writer) {
	fmt.Fprint(w, `Weather Probe - smoke test for the NWS weather client

Usage:
  weather-probe [flags] [command] [args]

Commands:
  run          Fetch the configured forecast, then the configured alerts (default)
  forecast     Get the forecast for a coordinate (--lat, --lon)
  alerts       Get active alerts for an area code (--area)
  watch        Run the probe on a cron schedule
  serve        Serve forecasts and alerts over HTTP
  tui          Interactive probe
  config       Manage configuration (init, show, path, keys, get, set)
  version      Show version information

Global Flags:
  --config <path|name>   Config file path or profile name
  --base-url <url>       NWS API base URL (default: https://api.weather.gov)
  --user-agent <ua>      User-Agent sent to the NWS API
  --output <format>      Output format: plain, json (default: plain)
  --no-color             Disable colored output
  --timeout <seconds>    Request timeout (default: 30)
  --strict               Fail on upstream errors instead of printing fallback messages
  --metrics-file <path>  Write Prometheus metrics to a textfile on exit
  --debug                Enable debug logging
  --version              Show version information
  --help                 Show this help message

Examples:
  weather-probe
  weather-probe forecast --lat 38.8894 --lon -77.0352
  weather-probe alerts --area TX
  weather-probe --strict --metrics-file /var/lib/node_exporter/weather_probe.prom run
  weather-probe watch --schedule "@every 5m" --pid-file /run/weather-probe.pid
  weather-probe serve --listen :64950

Configuration:
  Config file location: ~/.config/apimgr/weather-probe/cli.yml
  Initialize config: weather-probe config init
`)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "weather-probe version %s\n", Version)
	fmt.Fprintf(w, "Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "Build date: %s\n", BuildDate)
}
