// Package weather renders NWS forecasts and alerts as human-readable text
package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
	"github.com/apimgr/weather-probe/src/nws"
)

// Messages returned in place of a result when the upstream API fails
const (
	MsgForecastUnavailable = "Unable to fetch forecast data for this location."
	MsgDetailedUnavailable = "Unable to fetch detailed forecast."
	MsgAlertsUnavailable   = "Unable to fetch alerts or no alerts found."
	MsgNoActiveAlerts      = "No active alerts for this state."
)

// MaxPeriods is the number of forecast periods rendered
const MaxPeriods = 5

const separator = "\n---\n"

var (
	// ErrInvalidCoordinates is returned for NaN or out-of-range coordinates
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrEmptyArea is returned when no area code is given
	ErrEmptyArea = errors.New("area code is required")
	// ErrUpstream wraps NWS failures in strict mode
	ErrUpstream = errors.New("upstream request failed")
)

// Source is the subset of the NWS client the service needs
type Source interface {
	Point(ctx context.Context, lat, lon float64) (*nws.Point, error)
	Forecast(ctx context.Context, forecastURL string) (*nws.Forecast, error)
	ActiveAlerts(ctx context.Context, area string) (*nws.AlertCollection, error)
}

// Service is the weather module: GetForecast and GetAlerts
type Service struct {
	source Source
	logger *logging.Logger
	strict bool
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithStrict makes the text operations return upstream errors instead of
// the fallback messages
func WithStrict(strict bool) Option {
	return func(s *Service) {
		s.strict = strict
	}
}

// NewService creates a weather service over source
func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source: source,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("weather")
	return s
}

// ForecastReport is the structured result of a forecast lookup
type ForecastReport struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	GridID    string       `json:"grid_id,omitempty"`
	GridX     int          `json:"grid_x,omitempty"`
	GridY     int          `json:"grid_y,omitempty"`
	City      string       `json:"city,omitempty"`
	State     string       `json:"state,omitempty"`
	Periods   []nws.Period `json:"periods"`
}

// AlertReport is the structured result of an alerts lookup
type AlertReport struct {
	Area   string                `json:"area"`
	Alerts []nws.AlertProperties `json:"alerts"`
}

// Stage identifies which upstream lookup failed
type Stage string

const (
	StagePoint    Stage = "point"
	StageForecast Stage = "forecast"
	StageAlerts   Stage = "alerts"
)

// LookupError carries the failed stage and the underlying NWS error
type LookupError struct {
	Stage Stage
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup: %v", e.Stage, e.Err)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}

// ValidateCoordinates checks latitude and longitude ranges
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// Forecast looks up the forecast periods for a coordinate
func (s *Service) Forecast(ctx context.Context, lat, lon float64) (*ForecastReport, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	point, err := s.source.Point(ctx, lat, lon)
	if err != nil {
		return nil, &LookupError{Stage: StagePoint, Err: err}
	}

	forecast, err := s.source.Forecast(ctx, point.Properties.Forecast)
	if err != nil {
		return nil, &LookupError{Stage: StageForecast, Err: err}
	}

	props := point.Properties
	return &ForecastReport{
		Latitude:  lat,
		Longitude: lon,
		GridID:    props.GridID,
		GridX:     props.GridX,
		GridY:     props.GridY,
		City:      props.RelativeLocation.Properties.City,
		State:     props.RelativeLocation.Properties.State,
		Periods:   forecast.Properties.Periods,
	}, nil
}

// Alerts looks up active alerts for an area code. A nil Alerts slice means
// the response carried no features member.
func (s *Service) Alerts(ctx context.Context, area string) (*AlertReport, error) {
	area = strings.ToUpper(strings.TrimSpace(area))
	if area == "" {
		return nil, ErrEmptyArea
	}

	collection, err := s.source.ActiveAlerts(ctx, area)
	if err != nil {
		return nil, &LookupError{Stage: StageAlerts, Err: err}
	}

	report := &AlertReport{Area: area}
	if collection.Features != nil {
		report.Alerts = make([]nws.AlertProperties, 0, len(collection.Features))
		for _, feature := range collection.Features {
			report.Alerts = append(report.Alerts, feature.Properties)
		}
	}
	return report, nil
}

// GetForecast returns the first forecast periods for a coordinate as text.
// Upstream failures yield a fixed message unless the service is strict.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64) (string, error) {
	report, err := s.Forecast(ctx, lat, lon)
	if err != nil {
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) || s.strict || ctx.Err() != nil {
			metrics.ProbeCallsTotal.WithLabelValues("forecast", "error").Inc()
			return "", err
		}
		s.logger.Warn("forecast for %s,%s unavailable: %v",
			nws.FormatCoordinate(lat), nws.FormatCoordinate(lon), err)
		metrics.ProbeCallsTotal.WithLabelValues("forecast", "fallback").Inc()
		if lookupErr.Stage == StagePoint {
			return MsgForecastUnavailable, nil
		}
		return MsgDetailedUnavailable, nil
	}

	metrics.ProbeCallsTotal.WithLabelValues("forecast", "ok").Inc()
	return FormatForecast(report.Periods), nil
}

// GetAlerts returns the active alerts for an area code as text.
// Upstream failures yield a fixed message unless the service is strict.
func (s *Service) GetAlerts(ctx context.Context, area string) (string, error) {
	report, err := s.Alerts(ctx, area)
	if err != nil {
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) || s.strict || ctx.Err() != nil {
			metrics.ProbeCallsTotal.WithLabelValues("alerts", "error").Inc()
			return "", err
		}
		s.logger.Warn("alerts for %s unavailable: %v", strings.ToUpper(strings.TrimSpace(area)), err)
		metrics.ProbeCallsTotal.WithLabelValues("alerts", "fallback").Inc()
		return MsgAlertsUnavailable, nil
	}

	if report.Alerts == nil {
		if s.strict {
			metrics.ProbeCallsTotal.WithLabelValues("alerts", "error").Inc()
			return "", fmt.Errorf("%w: alerts response for %s has no features", ErrUpstream, report.Area)
		}
		metrics.ProbeCallsTotal.WithLabelValues("alerts", "fallback").Inc()
		return MsgAlertsUnavailable, nil
	}

	metrics.ProbeCallsTotal.WithLabelValues("alerts", "ok").Inc()
	return FormatAlerts(report.Alerts), nil
}

// FormatForecast renders up to MaxPeriods periods separated by "---"
func FormatForecast(periods []nws.Period) string {
	if len(periods) > MaxPeriods {
		periods = periods[:MaxPeriods]
	}

	parts := make([]string, 0, len(periods))
	for _, p := range periods {
		parts = append(parts, FormatPeriod(p))
	}
	return strings.Join(parts, separator)
}

// FormatPeriod renders a single forecast period
func FormatPeriod(p nws.Period) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s:\n", p.Name))
	sb.WriteString(fmt.Sprintf("Temperature: %s°%s\n", strconv.FormatFloat(p.Temperature, 'f', -1, 64), p.TemperatureUnit))
	sb.WriteString(fmt.Sprintf("Wind: %s %s\n", p.WindSpeed, p.WindDirection))
	sb.WriteString(fmt.Sprintf("Forecast: %s\n", p.DetailedForecast))
	return sb.String()
}

// FormatAlerts renders every alert separated by "---", or the no-alerts
// message for an empty list
func FormatAlerts(alerts []nws.AlertProperties) string {
	if len(alerts) == 0 {
		return MsgNoActiveAlerts
	}

	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, FormatAlert(a))
	}
	return strings.Join(parts, separator)
}

// FormatAlert renders a single alert, substituting defaults for empty fields
func FormatAlert(a nws.AlertProperties) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Event: %s\n", valueOr(a.Event, "Unknown")))
	sb.WriteString(fmt.Sprintf("Area: %s\n", valueOr(a.AreaDesc, "Unknown")))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", valueOr(a.Severity, "Unknown")))
	sb.WriteString(fmt.Sprintf("Description: %s\n", valueOr(a.Description, "No description available")))
	sb.WriteString(fmt.Sprintf("Instructions: %s\n", valueOr(a.Instruction, "No specific instructions provided")))
	return sb.String()
}

// valueOr treats null, empty and whitespace-only fields as missing
func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
