package dataapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/monpham/mcp-homecast/internal/domain"
)

type meteoLocation struct {
	name      string
	latitude  float64
	longitude float64
}

var (
	locationCaoLanh   = meteoLocation{name: "Cao Lanh", latitude: 10.4606, longitude: 105.6328}
	locationHoChiMinh = meteoLocation{name: "Ho Chi Minh City", latitude: 10.8231, longitude: 106.6297}
)

// Conditions the upstream weather codes map to, in Vietnamese as users
// expect them spoken.
var weatherCodeNames = map[int]string{
	0:  "Quang đãng",
	1:  "Chủ yếu quang đãng",
	2:  "Một phần có mây",
	3:  "U ám",
	61: "Mưa nhỏ",
	63: "Mưa vừa",
	65: "Mưa to",
	95: "Dông",
}

type meteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Weather returns current conditions for one of the two supported
// locations; unrecognized city names fall back to Ho Chi Minh City.
func (c *Client) Weather(ctx context.Context, city string) (*domain.WeatherReport, error) {
	location := resolveLocation(city)

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(location.latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(location.longitude, 'f', 4, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,weather_code")
	params.Set("timezone", "Asia/Bangkok")
	params.Set("forecast_days", "1")

	var payload meteoResponse
	if err := c.getJSON(ctx, c.feeds, c.weatherURL, params, &payload); err != nil {
		return nil, upstreamError("weather feed", err)
	}

	conditions, ok := weatherCodeNames[payload.Current.WeatherCode]
	if !ok {
		conditions = "Không xác định"
	}

	return &domain.WeatherReport{
		City:        location.name,
		Temperature: payload.Current.Temperature,
		Humidity:    payload.Current.Humidity,
		Conditions:  conditions,
	}, nil
}

func resolveLocation(city string) meteoLocation {
	switch strings.ToLower(strings.TrimSpace(city)) {
	case "cao lanh", "cao lãnh":
		return locationCaoLanh
	default:
		return locationHoChiMinh
	}
}
