package models

// Coordinates is a latitude/longitude pair resolved from a client IP.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WeatherReport is the trimmed view of a provider response returned to callers.
type WeatherReport struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"` // Celsius
	Condition   string  `json:"condition"`
}

// WeatherResponse is the envelope written by /api/how-is-your-weather.
type WeatherResponse struct {
	Success bool           `json:"success"`
	Data    *WeatherReport `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}
