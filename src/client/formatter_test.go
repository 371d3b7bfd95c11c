package client

import (
	"strings"
	"testing"

	"github.com/apimgr/weather-probe/src/weather"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format string
		color  bool
		isJSON bool
	}{
		{"json", false, true},
		{"plain", false, false},
		{"plain", true, false},
	}

	for _, tt := range tests {
		formatter := NewFormatter(tt.format, tt.color)
		if formatter.Format != tt.format || formatter.Color != tt.color {
			t.Errorf("NewFormatter(%s, %t) = %+v", tt.format, tt.color, formatter)
		}
		if formatter.IsJSON() != tt.isJSON {
			t.Errorf("IsJSON() for %s = %t, want %t", tt.format, formatter.IsJSON(), tt.isJSON)
		}
	}
}

func TestHeadingWithoutColor(t *testing.T) {
	formatter := NewFormatter("plain", false)

	heading := "Getting forecast for Cape Town..."
	if got := formatter.Heading(heading); got != heading {
		t.Errorf("Heading() = %q, want it unchanged", got)
	}
}

func TestHeadingWithColorKeepsText(t *testing.T) {
	formatter := NewFormatter("plain", true)

	if got := formatter.Heading("Getting alerts for TX..."); !strings.Contains(got, "Getting alerts for TX...") {
		t.Errorf("Heading() = %q, want it to contain the text", got)
	}
}

func TestFormatJSON(t *testing.T) {
	formatter := NewFormatter("json", false)

	report := &weather.AlertReport{Area: "TX"}
	result := formatter.FormatJSON(report)

	if !strings.Contains(result, `"area": "TX"`) {
		t.Errorf("Expected indented area field, got %s", result)
	}
	if !strings.Contains(result, `"alerts": null`) {
		t.Errorf("Expected null alerts for a missing features member, got %s", result)
	}
}

func TestFormatJSONError(t *testing.T) {
	formatter := NewFormatter("json", false)

	result := formatter.FormatJSON(map[string]interface{}{"bad": make(chan int)})
	if !strings.HasPrefix(result, "Error formatting JSON") {
		t.Errorf("Expected error text for unencodable value, got %s", result)
	}
}

func TestFormatJSONLine(t *testing.T) {
	formatter := NewFormatter("json", false)

	result := formatter.FormatJSONLine(probeEvent{RunID: "abc", Call: "alerts", Alerts: &weather.AlertReport{Area: "TX"}})
	if strings.Contains(result, "\n") {
		t.Errorf("Expected a single line, got %q", result)
	}
	if !strings.HasPrefix(result, `{"run_id":"abc","call":"alerts","alerts":{`) {
		t.Errorf("Unexpected line %s", result)
	}

	if got := formatter.FormatJSONLine(make(chan int)); !strings.HasPrefix(got, `{"error":`) {
		t.Errorf("Expected an error object for unencodable value, got %s", got)
	}
}

func TestColorEnabled(t *testing.T) {
	tests := []struct {
		name string
		mode string
		env  string
		want bool
	}{
		{"always", "always", "1", true},
		{"never", "never", "", false},
		{"auto with NO_COLOR", "auto", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.env)
			if got := ColorEnabled(tt.mode); got != tt.want {
				t.Errorf("ColorEnabled(%s) = %t, want %t", tt.mode, got, tt.want)
			}
		})
	}
}

func TestNoColorFlagOverridesConfig(t *testing.T) {
	config := DefaultConfig()
	config.Output.Color = "always"

	gf := globalFlags{noColor: true}
	if err := gf.apply(config); err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	if config.Output.Color != "never" || ColorEnabled(config.Output.Color) {
		t.Errorf("output.color = %s after --no-color, want never", config.Output.Color)
	}
}
