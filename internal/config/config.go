package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from environment
// variables, with an optional .env file in the working directory.
type Config struct {
	ServiceName   string
	ServerAddress string
	LogLevel      string

	RedisURL    string
	DatabaseURL string

	OpenWeatherAPIKey string
	GeoURL            string
	OneCallURL        string
	AirURL            string
	TileAPIKey        string

	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	UpstreamBurst   int

	WebRoot string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVICE_NAME", "skycast")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPENWEATHER_GEO_URL", "https://api.openweathermap.org/geo/1.0")
	v.SetDefault("OPENWEATHER_ONECALL_URL", "https://api.openweathermap.org/data/3.0/onecall")
	v.SetDefault("OPENWEATHER_AIR_URL", "https://api.openweathermap.org/data/2.5/air_pollution")
	v.SetDefault("UPSTREAM_TIMEOUT", 10*time.Second)
	v.SetDefault("UPSTREAM_RPS", 5.0)
	v.SetDefault("UPSTREAM_BURST", 10)
	v.SetDefault("WEB_ROOT", "web")

	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		ServiceName:       v.GetString("SERVICE_NAME"),
		ServerAddress:     v.GetString("SERVER_ADDRESS"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		RedisURL:          v.GetString("REDIS_URL"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		OpenWeatherAPIKey: v.GetString("OPENWEATHER_API_KEY"),
		GeoURL:            v.GetString("OPENWEATHER_GEO_URL"),
		OneCallURL:        v.GetString("OPENWEATHER_ONECALL_URL"),
		AirURL:            v.GetString("OPENWEATHER_AIR_URL"),
		TileAPIKey:        v.GetString("TILE_API_KEY"),
		UpstreamTimeout:   v.GetDuration("UPSTREAM_TIMEOUT"),
		UpstreamRPS:       v.GetFloat64("UPSTREAM_RPS"),
		UpstreamBurst:     v.GetInt("UPSTREAM_BURST"),
		WebRoot:           v.GetString("WEB_ROOT"),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY is required")
	}

	return cfg, nil
}
