package client

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// handleForecastCommand handles the forecast command
func handleForecastCommand(ctx context.Context, a *app, args []string) error {
	flagSet := flag.NewFlagSet("forecast", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	lat := flagSet.Float64("lat", math.NaN(), "Latitude")
	lon := flagSet.Float64("lon", math.NaN(), "Longitude")

	if err := flagSet.Parse(args); err != nil {
		return NewUsageError(err.Error())
	}
	if math.IsNaN(*lat) || math.IsNaN(*lon) {
		return NewUsageError("must specify --lat and --lon")
	}

	if a.formatter.IsJSON() {
		report, err := a.weather.Forecast(ctx, *lat, *lon)
		if err != nil {
			return wrapExit(err)
		}
		fmt.Fprintln(a.stdout, a.formatter.FormatJSON(report))
		return nil
	}

	forecast, err := a.weather.GetForecast(ctx, *lat, *lon)
	if err != nil {
		return wrapExit(err)
	}
	fmt.Fprintln(a.stdout, forecast)
	return nil
}

// handleAlertsCommand handles the alerts command. The area may also be
// given positionally: weather-probe alerts TX
func handleAlertsCommand(ctx context.Context, a *app, args []string) error {
	flagSet := flag.NewFlagSet("alerts", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	area := flagSet.String("area", "", "Area code (US state or marine area)")

	if err := flagSet.Parse(args); err != nil {
		return NewUsageError(err.Error())
	}
	if *area == "" && flagSet.NArg() > 0 {
		*area = flagSet.Arg(0)
	}
	if strings.TrimSpace(*area) == "" {
		return NewUsageError("must specify --area")
	}

	if a.formatter.IsJSON() {
		report, err := a.weather.Alerts(ctx, *area)
		if err != nil {
			return wrapExit(err)
		}
		fmt.Fprintln(a.stdout, a.formatter.FormatJSON(report))
		return nil
	}

	alerts, err := a.weather.GetAlerts(ctx, *area)
	if err != nil {
		return wrapExit(err)
	}
	fmt.Fprintln(a.stdout, alerts)
	return nil
}

// handleConfigCommand handles config subcommands
func handleConfigCommand(path string, args []string, w io.Writer) error {
	if len(args) == 0 {
		return NewUsageError("config command requires a subcommand (init, show, get, set, keys)")
	}

	switch args[0] {
	case "init":
		created, err := InitConfig(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Configuration file created at: %s\n", created)
		return nil

	case "show":
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(config)
		if err != nil {
			return NewConfigError(fmt.Sprintf("failed to marshal config: %v", err))
		}
		fmt.Fprint(w, string(data))
		return nil

	case "path":
		fmt.Fprintln(w, ResolveConfigPath(path))
		return nil

	case "keys":
		keys := make([]string, 0, len(configKeys))
		for key := range configKeys {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, strings.Join(keys, "\n"))
		return nil

	case "get":
		if len(args) < 2 {
			return NewUsageError("config get requires a key")
		}
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		value, err := GetConfigValue(config, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, value)
		return nil

	case "set":
		if len(args) < 3 {
			return NewUsageError("config set requires a key and value")
		}
		value := strings.Join(args[2:], " ")
		if err := SetConfigValue(path, args[1], value); err != nil {
			return err
		}
		fmt.Fprintf(w, "Configuration updated: %s = %s\n", args[1], value)
		return nil

	default:
		return NewUsageError(fmt.Sprintf("unknown config subcommand: %s", args[0]))
	}
}
