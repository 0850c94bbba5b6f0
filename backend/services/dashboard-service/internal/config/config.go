package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "greenlens/backend/libs/config"
)

// Config defines dashboard-service configuration.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"DASHBOARD_HTTP_PORT"`
		RequestTimeout  time.Duration `yaml:"requestTimeout" env:"DASHBOARD_HTTP_REQUEST_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"DASHBOARD_HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"log"`
	Backend struct {
		URL            string `yaml:"url" env:"GREENLENS_BACKEND_URL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"GREENLENS_BACKEND_TIMEOUT"`
		Company        string `yaml:"company" env:"GREENLENS_COMPANY"`
	} `yaml:"backend"`
	Dashboard struct {
		PollInterval time.Duration `yaml:"pollInterval" env:"DASHBOARD_POLL_INTERVAL"`
		Tolerance    float64       `yaml:"tolerance" env:"DASHBOARD_TOLERANCE"`
		Window       int           `yaml:"window" env:"DASHBOARD_WINDOW"`
		ThresholdKW  float64       `yaml:"thresholdKw" env:"DASHBOARD_THRESHOLD_KW"`
	} `yaml:"dashboard"`
	Upload struct {
		MaxSizeMB   int64         `yaml:"maxSizeMb" env:"UPLOAD_MAX_SIZE_MB"`
		WatchDir    string        `yaml:"watchDir" env:"UPLOAD_WATCH_DIR"`
		SettleDelay time.Duration `yaml:"settleDelay" env:"UPLOAD_SETTLE_DELAY"`
	} `yaml:"upload"`
	Auth struct {
		Enabled      bool          `yaml:"enabled" env:"AUTH_ENABLED"`
		Operator     string        `yaml:"operator" env:"AUTH_OPERATOR"`
		PasswordHash string        `yaml:"passwordHash" env:"AUTH_PASSWORD_HASH"`
		JWTSecret    string        `yaml:"jwtSecret" env:"AUTH_JWT_SECRET"`
		TokenTTL     time.Duration `yaml:"tokenTtl" env:"AUTH_TOKEN_TTL"`
	} `yaml:"auth"`
	Database struct {
		DSN        string `yaml:"dsn" env:"DASHBOARD_POSTGRES_DSN"`
		SQLitePath string `yaml:"sqlitePath" env:"DASHBOARD_SQLITE_PATH"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"DASHBOARD_REDIS_ADDR"`
		Password string `yaml:"password" env:"DASHBOARD_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"DASHBOARD_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"DASHBOARD_REDIS_TTL"`
	} `yaml:"redis"`
	MQTT struct {
		ServerURL string `yaml:"serverUrl" env:"MQTT_SERVER_URL"`
		ClientID  string `yaml:"clientId" env:"MQTT_CLIENT_ID"`
		Username  string `yaml:"username" env:"MQTT_USERNAME"`
		Password  string `yaml:"password" env:"MQTT_PASSWORD"`
		KeepAlive uint16 `yaml:"keepAlive" env:"MQTT_KEEP_ALIVE"`
		Topic     string `yaml:"topic" env:"MQTT_TOPIC"`
	} `yaml:"mqtt"`
}

// Default returns configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.HTTP.RequestTimeout = 2 * time.Minute
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Backend.URL = "http://127.0.0.1:8000"
	cfg.Backend.TimeoutSeconds = 10
	cfg.Backend.Company = "GreenLens"
	cfg.Dashboard.PollInterval = 6 * time.Second
	cfg.Dashboard.Tolerance = 0.01
	cfg.Dashboard.Window = 3
	cfg.Dashboard.ThresholdKW = 1000
	cfg.Upload.MaxSizeMB = 25
	cfg.Upload.SettleDelay = 2 * time.Second
	cfg.Auth.Operator = "operator"
	cfg.Auth.TokenTTL = 12 * time.Hour
	cfg.Redis.TTL = 86400
	cfg.MQTT.ClientID = "greenlens-dashboard"
	cfg.MQTT.KeepAlive = 60
	cfg.MQTT.Topic = "v1/devices/me/telemetry"
	return cfg
}

// Load configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("config: backend url required")
	}
	if c.Dashboard.PollInterval <= 0 {
		return errors.New("config: dashboard poll interval must be positive")
	}
	if c.Dashboard.Tolerance < 0 {
		return errors.New("config: dashboard tolerance must not be negative")
	}
	if c.Upload.WatchDir != "" && c.Upload.SettleDelay < 0 {
		return errors.New("config: upload settle delay must not be negative")
	}
	if c.Auth.Enabled {
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("config: auth jwt secret required")
		}
		if strings.TrimSpace(c.Auth.PasswordHash) == "" {
			return errors.New("config: auth password hash required")
		}
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// BackendTimeout returns http client timeout.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// UploadLimit returns the maximum accepted upload in bytes.
func (c *Config) UploadLimit() int64 {
	if c.Upload.MaxSizeMB <= 0 {
		return 25 << 20
	}
	return c.Upload.MaxSizeMB << 20
}

// TranscriptTTL returns redis ttl as duration.
func (c *Config) TranscriptTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}
