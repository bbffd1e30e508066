package models

// Weather is the current conditions at a destination.
type Weather struct {
	City         string  `json:"city"`
	TemperatureC float64 `json:"temperature_c"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindSpeed    float64 `json:"wind_speed"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TimeZone     string  `json:"time_zone,omitempty"`
}

// Extras holds the optional lookups gathered alongside a completion.
type Extras struct {
	Weather *Weather
	Images  []string
	Notices []string
}
