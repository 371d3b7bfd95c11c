package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/apimgr/weather-probe/src/weather"
)

// fakeNWS mimics api.weather.gov for the probe targets used in these tests
type fakeNWS struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newFakeNWS(t *testing.T) *fakeNWS {
	t.Helper()
	f := &fakeNWS{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()

		switch r.URL.Path {
		case "/points/38.8894,-77.0352":
			fmt.Fprintf(w, `{"properties":{"gridId":"LWX","gridX":97,"gridY":71,"forecast":"%s/gridpoints/LWX/97,71/forecast"}}`, f.URL)
		case "/gridpoints/LWX/97,71/forecast":
			w.Write([]byte(`{"properties":{"periods":[{"name":"Tonight","temperature":54,"temperatureUnit":"F","windSpeed":"5 mph","windDirection":"SW","detailedForecast":"Clear."}]}}`))
		case "/points/-33.9249,18.4241":
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"title":"Data Unavailable For Requested Point","status":404}`))
		case "/alerts/active/area/MD":
			w.Write([]byte(`{"features":[{"properties":{"event":"Flood Warning","areaDesc":"Frederick","severity":"Severe"}}]}`))
		case "/alerts/active/area/TX":
			w.Write([]byte(`{"features":[]}`))
		case "/alerts/active/area/WC":
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"title":"Bad Request","status":400,"detail":"Invalid area"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeNWS) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// runCLI runs the CLI against the fake API with colors off
func runCLI(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--base-url", baseURL, "--no-color"}, args...)
	err := Run(context.Background(), full, &out)
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// writeProbeConfig writes a config that probes Washington DC and the given area
func writeProbeConfig(t *testing.T, area string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.yml")
	data := fmt.Sprintf(`probe:
  latitude: 38.8894
  longitude: -77.0352
  location_label: ""
  area: %s
  area_label: ""
`, area)
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunDefaultProbeFallbacks(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	out, err := runCLI(t, nws.URL)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "Getting forecast for Cape Town...\n" +
		weather.MsgForecastUnavailable + "\n" +
		"\n" +
		"Getting alerts for Western Cape (ZA)...\n" +
		weather.MsgAlertsUnavailable + "\n"
	if out != want {
		t.Errorf("output =\n%q\nwant\n%q", out, want)
	}
}

func TestRunProbeSuccess(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)
	config := writeProbeConfig(t, "MD")

	out, err := runCLI(t, nws.URL, "--config", config, "run")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := "Getting forecast for 38.8894,-77.0352...\n" +
		"\nTonight:\nTemperature: 54°F\nWind: 5 mph SW\nForecast: Clear.\n\n" +
		"\n" +
		"Getting alerts for MD...\n" +
		"\nEvent: Flood Warning\nArea: Frederick\nSeverity: Severe\n" +
		"Description: No description available\nInstructions: No specific instructions provided\n\n"
	if out != want {
		t.Errorf("output =\n%q\nwant\n%q", out, want)
	}

	wantOrder := []string{"/points/38.8894,-77.0352", "/gridpoints/LWX/97,71/forecast", "/alerts/active/area/MD"}
	if got := nws.requests(); strings.Join(got, " ") != strings.Join(wantOrder, " ") {
		t.Errorf("request order = %v, want %v", got, wantOrder)
	}
}

func TestRunNoActiveAlerts(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	out, err := runCLI(t, nws.URL, "--config", writeProbeConfig(t, "TX"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasSuffix(out, "Getting alerts for TX...\n"+weather.MsgNoActiveAlerts+"\n") {
		t.Errorf("output = %q", out)
	}
}

func TestRunStrict(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	t.Run("forecast failure stops the run", func(t *testing.T) {
		out, err := runCLI(t, nws.URL, "--strict")
		if code := exitCode(err); code != ExitNotFound {
			t.Fatalf("exit code = %d (%v), want %d", code, err, ExitNotFound)
		}
		if out != "Getting forecast for Cape Town...\n" {
			t.Errorf("output = %q", out)
		}
		for _, path := range nws.requests() {
			if strings.HasPrefix(path, "/alerts/") {
				t.Error("alerts must not be requested after the forecast failed")
			}
		}
	})

	t.Run("alerts failure", func(t *testing.T) {
		_, err := runCLI(t, nws.URL, "--strict", "--config", writeProbeConfig(t, "WC"))
		if code := exitCode(err); code != ExitGeneralError {
			t.Errorf("exit code = %d (%v), want %d", code, err, ExitGeneralError)
		}
	})
}

// requestCountWriter records how many API requests had been made at each write
type requestCountWriter struct {
	bytes.Buffer
	nws    *fakeNWS
	counts []int
}

func (w *requestCountWriter) Write(p []byte) (int, error) {
	w.counts = append(w.counts, len(w.nws.requests()))
	return w.Buffer.Write(p)
}

func TestRunJSON(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	out := &requestCountWriter{nws: nws}
	if err := Run(context.Background(), []string{"--base-url", nws.URL, "--no-color", "--output", "json"}, out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dec := json.NewDecoder(strings.NewReader(out.String()))
	var events []probeEvent
	for dec.More() {
		var event probeEvent
		if err := dec.Decode(&event); err != nil {
			t.Fatalf("output is not JSON lines: %v\n%s", err, out.String())
		}
		events = append(events, event)
	}
	if len(events) != 2 || events[0].Call != "forecast" || events[1].Call != "alerts" {
		t.Fatalf("events = %+v, want forecast then alerts", events)
	}
	if events[0].RunID == "" || events[0].RunID != events[1].RunID {
		t.Errorf("run ids = %q, %q", events[0].RunID, events[1].RunID)
	}
	if events[0].Forecast != nil || !strings.Contains(events[0].Error, "point lookup") {
		t.Errorf("forecast event = %+v", events[0])
	}
	if events[1].Alerts != nil || !strings.Contains(events[1].Error, "alerts lookup") {
		t.Errorf("alerts event = %+v", events[1])
	}

	// The forecast line is written before the alerts request goes out
	if len(out.counts) != 2 || out.counts[0] != 1 || out.counts[1] != 2 {
		t.Errorf("requests made at each write = %v, want [1 2]", out.counts)
	}
}

func TestRunConnectionError(t *testing.T) {
	setupTestHome(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	out, err := runCLI(t, closed.URL, "--timeout", "2")
	if err != nil {
		t.Fatalf("non-strict Run() error = %v", err)
	}
	if !strings.Contains(out, weather.MsgForecastUnavailable) || !strings.Contains(out, weather.MsgAlertsUnavailable) {
		t.Errorf("output = %q", out)
	}

	_, err = runCLI(t, closed.URL, "--timeout", "2", "--strict")
	if code := exitCode(err); code != ExitConnError {
		t.Errorf("strict exit code = %d (%v), want %d", code, err, ExitConnError)
	}
}

func TestForecastCommand(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	out, err := runCLI(t, nws.URL, "forecast", "--lat", "38.8894", "--lon", "-77.0352")
	if err != nil {
		t.Fatalf("forecast error = %v", err)
	}
	if out != "\nTonight:\nTemperature: 54°F\nWind: 5 mph SW\nForecast: Clear.\n\n" {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, nws.URL, "--output", "json", "forecast", "--lat", "38.8894", "--lon", "-77.0352")
	if err != nil {
		t.Fatalf("json forecast error = %v", err)
	}
	var report weather.ForecastReport
	if err := json.Unmarshal([]byte(out), &report); err != nil || report.GridID != "LWX" {
		t.Errorf("json output = %s (%v)", out, err)
	}
}

func TestAlertsCommand(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	out, err := runCLI(t, nws.URL, "alerts", "--area", "tx")
	if err != nil || out != weather.MsgNoActiveAlerts+"\n" {
		t.Errorf("alerts --area tx = %q, %v", out, err)
	}

	out, err = runCLI(t, nws.URL, "alerts", "MD")
	if err != nil || !strings.Contains(out, "Event: Flood Warning") {
		t.Errorf("alerts MD = %q, %v", out, err)
	}

	out, err = runCLI(t, nws.URL, "alerts", "WC")
	if err != nil || out != weather.MsgAlertsUnavailable+"\n" {
		t.Errorf("alerts WC = %q, %v", out, err)
	}
}

func TestUsageErrors(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"bogus"}},
		{"unknown flag", []string{"--bogus"}},
		{"forecast without coordinates", []string{"forecast"}},
		{"forecast out of range", []string{"forecast", "--lat", "91", "--lon", "0"}},
		{"alerts without area", []string{"alerts"}},
		{"bad output format", []string{"--output", "table"}},
		{"bad schedule", []string{"watch", "--schedule", "sometimes"}},
		{"config without subcommand", []string{"config"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, nws.URL, tt.args...)
			if code := exitCode(err); code != ExitUsageError {
				t.Errorf("exit code = %d (%v), want %d", code, err, ExitUsageError)
			}
		})
	}

	if len(nws.requests()) != 0 {
		t.Errorf("usage errors must not reach the API, got %v", nws.requests())
	}
}

func TestVersionAndHelp(t *testing.T) {
	setupTestHome(t)

	for _, args := range [][]string{{"version"}, {"--version"}} {
		var out bytes.Buffer
		if err := Run(context.Background(), args, &out); err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
		if !strings.HasPrefix(out.String(), "weather-probe version ") {
			t.Errorf("%v output = %q", args, out.String())
		}
	}

	var out bytes.Buffer
	if err := Run(context.Background(), []string{"--help"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("help output = %q", out.String())
	}
}

func TestConfigCommand(t *testing.T) {
	setupTestHome(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := Run(ctx, []string{"config", "init"}, &out); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out.String(), CLIConfigFile()) {
		t.Errorf("config init output = %q", out.String())
	}

	out.Reset()
	if err := Run(ctx, []string{"config", "set", "probe.area_label", "Texas", "(US)"}, &out); err != nil {
		t.Fatalf("config set error = %v", err)
	}

	out.Reset()
	if err := Run(ctx, []string{"config", "get", "probe.area_label"}, &out); err != nil {
		t.Fatalf("config get error = %v", err)
	}
	if out.String() != "Texas (US)\n" {
		t.Errorf("config get output = %q", out.String())
	}

	out.Reset()
	if err := Run(ctx, []string{"config", "show"}, &out); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out.String(), "area_label: Texas (US)") {
		t.Errorf("config show output = %q", out.String())
	}

	err := Run(ctx, []string{"config", "get", "nope"}, &out)
	if code := exitCode(err); code != ExitConfigError {
		t.Errorf("config get unknown key exit code = %d, want %d", code, ExitConfigError)
	}
}

func TestMetricsFile(t *testing.T) {
	setupTestHome(t)
	nws := newFakeNWS(t)
	path := filepath.Join(t.TempDir(), "textfile", "weather_probe.prom")

	if _, err := runCLI(t, nws.URL, "--metrics-file", path); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	for _, name := range []string{"weather_probe_runs_total", "weather_probe_upstream_requests_total", "weather_probe_app_info"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("metrics file missing %s", name)
		}
	}
}
