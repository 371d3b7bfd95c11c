package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apimgr/weather-probe/src/metrics"
	"github.com/apimgr/weather-probe/src/nws"
	"github.com/apimgr/weather-probe/src/weather"
)

// Target is what a probe run queries
type Target struct {
	Latitude      float64
	Longitude     float64
	LocationLabel string
	Area          string
	AreaLabel     string
}

// TargetFromConfig builds the probe target from the probe section
func TargetFromConfig(c *CLIConfig) Target {
	return Target{
		Latitude:      c.Probe.Latitude,
		Longitude:     c.Probe.Longitude,
		LocationLabel: c.Probe.LocationLabel,
		Area:          c.Probe.Area,
		AreaLabel:     c.Probe.AreaLabel,
	}
}

// Location returns the display name of the coordinate
func (t Target) Location() string {
	if t.LocationLabel != "" {
		return t.LocationLabel
	}
	return nws.FormatCoordinate(t.Latitude) + "," + nws.FormatCoordinate(t.Longitude)
}

// Region returns the display name of the area code
func (t Target) Region() string {
	if t.AreaLabel != "" {
		return t.AreaLabel
	}
	return t.Area
}

// probeEvent is one line of JSON output. A run writes a forecast event, then
// an alerts event.
type probeEvent struct {
	RunID    string                  `json:"run_id"`
	Call     string                  `json:"call"`
	Forecast *weather.ForecastReport `json:"forecast,omitempty"`
	Alerts   *weather.AlertReport    `json:"alerts,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// runProbe fetches the forecast, prints it, then fetches and prints the alerts.
// The alerts call never starts before the forecast has been written.
func (a *app) runProbe(ctx context.Context, target Target) error {
	runID := uuid.New().String()
	logger := a.logger.With("run " + runID[:8])
	start := time.Now()
	logger.Info("probe started: forecast %s, alerts %s", target.Location(), target.Area)

	var err error
	if a.formatter.IsJSON() {
		err = a.probeJSON(ctx, runID, target)
	} else {
		err = a.probePlain(ctx, target)
	}

	if err != nil {
		metrics.ProbeRunsTotal.WithLabelValues("failure").Inc()
		logger.Error("probe failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return err
	}

	metrics.ProbeRunsTotal.WithLabelValues("success").Inc()
	metrics.ProbeLastSuccess.SetToCurrentTime()
	logger.Info("probe finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (a *app) probePlain(ctx context.Context, target Target) error {
	fmt.Fprintln(a.stdout, a.formatter.Heading(fmt.Sprintf("Getting forecast for %s...", target.Location())))
	forecast, err := a.weather.GetForecast(ctx, target.Latitude, target.Longitude)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	fmt.Fprintln(a.stdout, forecast)

	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, a.formatter.Heading(fmt.Sprintf("Getting alerts for %s...", target.Region())))
	alerts, err := a.weather.GetAlerts(ctx, target.Area)
	if err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	fmt.Fprintln(a.stdout, alerts)

	return nil
}

func (a *app) probeJSON(ctx context.Context, runID string, target Target) error {
	forecast, err := a.weather.Forecast(ctx, target.Latitude, target.Longitude)
	event := probeEvent{RunID: runID, Call: "forecast", Forecast: forecast}
	if err != nil {
		if !a.tolerable(ctx, err) {
			return fmt.Errorf("forecast: %w", err)
		}
		event.Error = err.Error()
	}
	fmt.Fprintln(a.stdout, a.formatter.FormatJSONLine(event))

	alerts, err := a.weather.Alerts(ctx, target.Area)
	event = probeEvent{RunID: runID, Call: "alerts", Alerts: alerts}
	if err != nil {
		if !a.tolerable(ctx, err) {
			return fmt.Errorf("alerts: %w", err)
		}
		event.Error = err.Error()
	}
	fmt.Fprintln(a.stdout, a.formatter.FormatJSONLine(event))
	return nil
}

// tolerable reports whether err is an upstream failure that non-strict runs report
// instead of failing on
func (a *app) tolerable(ctx context.Context, err error) bool {
	var lookupErr *weather.LookupError
	return errors.As(err, &lookupErr) && !a.config.Strict && ctx.Err() == nil
}
