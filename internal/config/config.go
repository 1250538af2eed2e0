package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Collector CollectorConfig
	Sources   SourcesConfig
	AI        AIConfig
	SMS       SMSConfig
	Worker    WorkerConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type CollectorConfig struct {
	Interval       time.Duration
	AdapterTimeout time.Duration

	// Auto-detection thresholds applied after each cycle.
	RainfallFloodMM   float64 // single-reading rainfall that opens a flood disaster
	RainfallSevereMM  float64 // above this the flood is recorded as high severity
	QuakeMinMagnitude float64
	FireClusterMin    int // hotspots in a 1-degree cell to open a wildfire
	FireClusterHigh   int // hotspots for high severity
}

type SourcesConfig struct {
	WeatherEnabled  bool
	WeatherURL      string
	ForecastEnabled bool
	ForecastURL     string
	USGSEnabled     bool
	USGSURL         string
	FIRMSEnabled    bool
	FIRMSURL        string
	FIRMSKey        string
}

type AIConfig struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration // how long a cached analysis stays live
}

type SMSConfig struct {
	Username   string
	APIKey     string
	SenderID   string
	BaseURL    string
	CharLimit  int // per-language message cap for the SMS channel
	MaxRetries int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Collector: CollectorConfig{
			Interval:          getEnvDuration("COLLECT_INTERVAL", 30*time.Minute),
			AdapterTimeout:    getEnvDuration("ADAPTER_TIMEOUT", 15*time.Second),
			RainfallFloodMM:   getEnvFloat("RAINFALL_FLOOD_MM", 20),
			RainfallSevereMM:  getEnvFloat("RAINFALL_SEVERE_MM", 50),
			QuakeMinMagnitude: getEnvFloat("QUAKE_MIN_MAGNITUDE", 3.5),
			FireClusterMin:    getEnvInt("FIRE_CLUSTER_MIN", 3),
			FireClusterHigh:   getEnvInt("FIRE_CLUSTER_HIGH", 10),
		},
		Sources: SourcesConfig{
			WeatherEnabled:  getEnvBool("WEATHER_ENABLED", true),
			WeatherURL:      getEnv("WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
			ForecastEnabled: getEnvBool("FORECAST_ENABLED", true),
			ForecastURL:     getEnv("FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
			USGSEnabled:     getEnvBool("USGS_ENABLED", true),
			USGSURL:         getEnv("USGS_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson"),
			FIRMSEnabled:    getEnvBool("FIRMS_ENABLED", true),
			FIRMSURL:        getEnv("FIRMS_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
			FIRMSKey:        getEnv("FIRMS_API_KEY", ""),
		},
		AI: AIConfig{
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:  getEnvDuration("AI_TIMEOUT", 30*time.Second),
			CacheTTL: getEnvDuration("AI_CACHE_TTL", 30*time.Minute),
		},
		SMS: SMSConfig{
			Username:   getEnv("AFRICASTALKING_USERNAME", "sandbox"),
			APIKey:     getEnv("AFRICASTALKING_API_KEY", ""),
			SenderID:   getEnv("SMS_SENDER_ID", "NDMA-KE"),
			BaseURL:    getEnv("SMS_BASE_URL", "https://api.sandbox.africastalking.com"),
			CharLimit:  getEnvInt("SMS_CHAR_LIMIT", 160),
			MaxRetries: getEnvInt("SMS_MAX_RETRIES", 3),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 50),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/kdms.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Collector.Interval < time.Minute {
		return fmt.Errorf("collect interval must be at least 1 minute")
	}
	if c.Collector.AdapterTimeout <= 0 {
		return fmt.Errorf("adapter timeout must be positive")
	}
	if c.Collector.AdapterTimeout >= c.Collector.Interval {
		return fmt.Errorf("adapter timeout must be shorter than the collect interval")
	}
	if c.SMS.CharLimit < 20 {
		return fmt.Errorf("SMS char limit too small: %d", c.SMS.CharLimit)
	}
	if c.SMS.MaxRetries < 0 {
		return fmt.Errorf("SMS max retries must not be negative")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
