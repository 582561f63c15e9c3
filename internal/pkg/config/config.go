package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram TelegramCfg `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Lookup   LookupCfg   `yaml:"lookup" envPrefix:"LOOKUP_"`
	Storage  StorageCfg  `yaml:"storage" envPrefix:"STORAGE_"`
	Quality  QualityCfg  `yaml:"quality" envPrefix:"QUALITY_"`
	MTProto  MTProtoCfg  `yaml:"mtproto" envPrefix:"MTPROTO_"`
	MQTT     MQTTCfg     `yaml:"mqtt" envPrefix:"MQTT_"`
	DB       DBCfg       `yaml:"db" envPrefix:"DB_"`
	Server   ServerCfg   `yaml:"server" envPrefix:"SERVER_"`
	Log      LogCfg      `yaml:"log" envPrefix:"LOG_"`
}

type TelegramCfg struct {
	Token      string `yaml:"token" env:"TOKEN"`
	OperatorID int64  `yaml:"operator_id" env:"OPERATOR_ID"`
}

type LookupCfg struct {
	// Endpoint is the base URL, the order number is appended as the last path segment.
	Endpoint      string        `yaml:"endpoint" env:"ENDPOINT"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RatePerSecond int           `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	MaxRetries    uint64        `yaml:"max_retries" env:"MAX_RETRIES"`
}

type StorageCfg struct {
	AllowedRoot   string        `yaml:"allowed_root" env:"ALLOWED_ROOT"`
	WorkingFormat string        `yaml:"working_format" env:"WORKING_FORMAT"`
	JPEGQuality   int           `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	PartTTL       time.Duration `yaml:"part_ttl" env:"PART_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// Ext returns the file extension of the working format, with the leading dot.
func (s StorageCfg) Ext() string {
	if s.WorkingFormat == "jpeg" {
		return ".jpg"
	}
	return "." + s.WorkingFormat
}

type QualityCfg struct {
	// MinAspectRatio is compared against the minor/major side ratio.
	MinAspectRatio float64 `yaml:"min_aspect_ratio" env:"MIN_ASPECT_RATIO"`
	// BlurThreshold of 0 disables the blur check.
	BlurThreshold float64 `yaml:"blur_threshold" env:"BLUR_THRESHOLD"`
}

type MTProtoCfg struct {
	AppID   int    `yaml:"app_id" env:"APP_ID"`
	AppHash string `yaml:"app_hash" env:"APP_HASH"`
}

func (m MTProtoCfg) Enabled() bool {
	return m.AppID != 0 && m.AppHash != ""
}

type MQTTCfg struct {
	Broker   string `yaml:"broker" env:"BROKER"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
	Topic    string `yaml:"topic" env:"TOPIC"`
	QoS      byte   `yaml:"qos" env:"QOS"`
	Encoding string `yaml:"encoding" env:"ENCODING"`
}

func (m MQTTCfg) Enabled() bool {
	return m.Broker != ""
}

type DBCfg struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

type ServerCfg struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type LogCfg struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// SlogLevel maps the configured level name, unknown names fall back to info.
func (l LogCfg) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinPartTTL keeps the sweep away from downloads that are still being written.
const MinPartTTL = time.Minute

func Default() Config {
	return Config{
		Lookup: LookupCfg{
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			MaxRetries:    2,
		},
		Storage: StorageCfg{
			WorkingFormat: "jpg",
			JPEGQuality:   95,
			PartTTL:       time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		Quality: QualityCfg{
			MinAspectRatio: 0.67,
			BlurThreshold:  100,
		},
		MQTT: MQTTCfg{
			ClientID: "photo-intake-bot",
			Topic:    "print/orders",
			QoS:      1,
			Encoding: "json",
		},
		Server: ServerCfg{Addr: ":9090"},
		Log:    LogCfg{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an optional .env
// file and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Telegram.OperatorID == 0 {
		errs = append(errs, errors.New("telegram.operator_id is required"))
	}
	if c.Lookup.Endpoint == "" {
		errs = append(errs, errors.New("lookup.endpoint is required"))
	}
	if c.Lookup.RatePerSecond <= 0 {
		errs = append(errs, errors.New("lookup.rate_per_second must be positive"))
	}
	if c.Storage.AllowedRoot == "" {
		errs = append(errs, errors.New("storage.allowed_root is required"))
	}
	switch c.Storage.WorkingFormat {
	case "jpg", "jpeg", "png":
	default:
		errs = append(errs, fmt.Errorf("storage.working_format %q is not supported", c.Storage.WorkingFormat))
	}
	if c.Storage.PartTTL < MinPartTTL {
		errs = append(errs, fmt.Errorf("storage.part_ttl must be at least %s", MinPartTTL))
	}
	if c.Storage.SweepInterval <= 0 {
		errs = append(errs, errors.New("storage.sweep_interval must be positive"))
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("storage.jpeg_quality %d out of range 1-100", c.Storage.JPEGQuality))
	}
	if c.Quality.MinAspectRatio <= 0 || c.Quality.MinAspectRatio > 1 {
		errs = append(errs, fmt.Errorf("quality.min_aspect_ratio %v out of range (0,1]", c.Quality.MinAspectRatio))
	}
	if c.Quality.BlurThreshold < 0 {
		errs = append(errs, errors.New("quality.blur_threshold must not be negative"))
	}
	if c.MQTT.Enabled() {
		switch c.MQTT.Encoding {
		case "json", "msgpack":
		default:
			errs = append(errs, fmt.Errorf("mqtt.encoding %q is not supported", c.MQTT.Encoding))
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos %d out of range 0-2", c.MQTT.QoS))
		}
	}
	return errors.Join(errs...)
}
