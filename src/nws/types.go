package nws

// Point is the /points/{lat},{lon} response: grid metadata for a coordinate
type Point struct {
	ID         string          `json:"id"`
	Properties PointProperties `json:"properties"`
}

// PointProperties holds the links and grid location of a point
type PointProperties struct {
	GridID           string           `json:"gridId"`
	GridX            int              `json:"gridX"`
	GridY            int              `json:"gridY"`
	Forecast         string           `json:"forecast"`
	ForecastHourly   string           `json:"forecastHourly"`
	TimeZone         string           `json:"timeZone"`
	RelativeLocation RelativeLocation `json:"relativeLocation"`
}

// RelativeLocation is the nearest named place to a point
type RelativeLocation struct {
	Properties struct {
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"properties"`
}

// Forecast is a gridpoint forecast response
type Forecast struct {
	Properties ForecastProperties `json:"properties"`
}

// ForecastProperties holds the forecast periods
type ForecastProperties struct {
	Updated string   `json:"updated"`
	Units   string   `json:"units"`
	Periods []Period `json:"periods"`
}

// Period is a single forecast period ("Tonight", "Monday", ...)
type Period struct {
	Number           int     `json:"number"`
	Name             string  `json:"name"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
	IsDaytime        bool    `json:"isDaytime"`
	Temperature      float64 `json:"temperature"`
	TemperatureUnit  string  `json:"temperatureUnit"`
	WindSpeed        string  `json:"windSpeed"`
	WindDirection    string  `json:"windDirection"`
	ShortForecast    string  `json:"shortForecast"`
	DetailedForecast string  `json:"detailedForecast"`
}

// AlertCollection is the /alerts/active response. Features is nil when the
// response carried no features member at all.
type AlertCollection struct {
	Title    string         `json:"title"`
	Updated  string         `json:"updated"`
	Features []AlertFeature `json:"features"`
}

// AlertFeature is one GeoJSON alert feature
type AlertFeature struct {
	ID         string          `json:"id"`
	Properties AlertProperties `json:"properties"`
}

// AlertProperties are the CAP fields of an alert
type AlertProperties struct {
	ID          string `json:"id"`
	AreaDesc    string `json:"areaDesc"`
	Sent        string `json:"sent"`
	Effective   string `json:"effective"`
	Expires     string `json:"expires"`
	Status      string `json:"status"`
	MessageType string `json:"messageType"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Certainty   string `json:"certainty"`
	Urgency     string `json:"urgency"`
	Event       string `json:"event"`
	SenderName  string `json:"senderName"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
}

// problem is the application/problem+json error body returned by the API
type problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	CorrelationID string `json:"correlationId"`
}
