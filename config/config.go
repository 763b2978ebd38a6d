// Package config loads madbus settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/madbus/madbus/directory"
)

// Prefix of environment variables overriding file settings.
const EnvPrefix = "MADBUS_"

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	EMT      EMTConfig      `yaml:"emt"`
	Query    QueryConfig    `yaml:"query"`
	Warmup   WarmupConfig   `yaml:"warmup"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Arrivals ArrivalsConfig `yaml:"arrivals"`
	Log      LogConfig      `yaml:"log"`
}

type TelegramConfig struct {
	Token     string `yaml:"token"`
	CacheTime int    `yaml:"cache_time" validate:"min=0"`
}

type EMTConfig struct {
	BaseURL  string        `yaml:"base_url" validate:"required,url"`
	ClientID string        `yaml:"client_id"`
	PassKey  string        `yaml:"pass_key"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
}

type QueryConfig struct {
	MaxResults     int    `yaml:"max_results" validate:"min=1,max=50"`
	MaxColumnWidth int    `yaml:"max_column_width" validate:"min=1"`
	SearchRadius   int    `yaml:"search_radius" validate:"min=1"`
	Thumbnail      string `yaml:"thumbnail" validate:"omitempty,url"`
}

type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" validate:"min=0"`
	MaxDelay     time.Duration `yaml:"max_delay" validate:"min=0"`
	Multiplier   float64       `yaml:"multiplier" validate:"gte=1"`
	MaxAttempts  int           `yaml:"max_attempts" validate:"min=0"`
}

type WarmupConfig struct {
	BatchSize int           `yaml:"batch_size" validate:"min=1"`
	Stagger   time.Duration `yaml:"stagger" validate:"min=0"`
	MaxID     int           `yaml:"max_id" validate:"min=2"`
	Retry     RetryConfig   `yaml:"retry"`
}

type CatalogConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory string `yaml:"directory"`
	DSN       string `yaml:"dsn" validate:"required_if=Backend postgres"`
	Archive   string `yaml:"archive"`
	LinesFile string `yaml:"lines_file" validate:"required_without=Archive"`
	StopsFile string `yaml:"stops_file" validate:"required_without=Archive"`
}

type ArrivalsConfig struct {
	Cache         string        `yaml:"cache" validate:"oneof=none memory redis"`
	TTL           time.Duration `yaml:"ttl" validate:"min=0"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Cache redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			CacheTime: 0,
		},
		EMT: EMTConfig{
			BaseURL: "https://openbus.emtmadrid.es:9443/emt-proxy-server/last",
			Timeout: 10 * time.Second,
		},
		Query: QueryConfig{
			MaxResults:     6,
			MaxColumnWidth: 14,
			SearchRadius:   200,
			Thumbnail:      "https://www.emtmadrid.es/Imagenes/Logos/emt.png",
		},
		Warmup: WarmupConfig{
			BatchSize: directory.DefaultBatchSize,
			Stagger:   directory.DefaultStagger,
			MaxID:     directory.DefaultMaxID,
			Retry: RetryConfig{
				InitialDelay: directory.DefaultRetryPolicy.InitialDelay,
				MaxDelay:     directory.DefaultRetryPolicy.MaxDelay,
				Multiplier:   directory.DefaultRetryPolicy.Multiplier,
				MaxAttempts:  directory.DefaultRetryPolicy.MaxAttempts,
			},
		},
		Catalog: CatalogConfig{
			Backend:   "memory",
			LinesFile: "data/lines.csv",
			StopsFile: "data/stops.csv",
		},
		Arrivals: ArrivalsConfig{
			Cache: "memory",
			TTL:   15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the YAML file at path, on top of the
// defaults. Variables in ./.env, if present, are added to the
// environment first. An empty path skips the file.
func Load(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Warmup.Retry.MaxDelay < c.Warmup.Retry.InitialDelay {
		return fmt.Errorf("invalid config: retry max_delay below initial_delay")
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TELEGRAM_TOKEN":          &c.Telegram.Token,
		"EMT_BASE_URL":            &c.EMT.BaseURL,
		"EMT_CLIENT_ID":           &c.EMT.ClientID,
		"EMT_PASS_KEY":            &c.EMT.PassKey,
		"CATALOG_BACKEND":         &c.Catalog.Backend,
		"CATALOG_DIRECTORY":       &c.Catalog.Directory,
		"CATALOG_DSN":             &c.Catalog.DSN,
		"CATALOG_ARCHIVE":         &c.Catalog.Archive,
		"CATALOG_LINES_FILE":      &c.Catalog.LinesFile,
		"CATALOG_STOPS_FILE":      &c.Catalog.StopsFile,
		"ARRIVALS_CACHE":          &c.Arrivals.Cache,
		"ARRIVALS_REDIS_ADDR":     &c.Arrivals.RedisAddr,
		"ARRIVALS_REDIS_PASSWORD": &c.Arrivals.RedisPassword,
		"LOG_LEVEL":               &c.Log.Level,
		"LOG_FORMAT":              &c.Log.Format,
	}
	for name, field := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"MAX_RESULTS":       &c.Query.MaxResults,
		"MAX_COLUMN_WIDTH":  &c.Query.MaxColumnWidth,
		"SEARCH_RADIUS":     &c.Query.SearchRadius,
		"ARRIVALS_REDIS_DB": &c.Arrivals.RedisDB,
	}
	for name, field := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", EnvPrefix, name, err)
		}
		*field = n
	}

	if v, ok := lookup(EnvPrefix + "ARRIVALS_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sARRIVALS_TTL: %w", EnvPrefix, err)
		}
		c.Arrivals.TTL = d
	}

	return nil
}

// RequireCredentials checks that the settings needed to talk to the
// EMT API, and to Telegram if telegram is set, are present.
func (c *Config) RequireCredentials(telegram bool) error {
	if c.EMT.ClientID == "" || c.EMT.PassKey == "" {
		return fmt.Errorf("emt client_id and pass_key are required")
	}
	if telegram && c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	return nil
}

func (w WarmupConfig) RetryPolicy() directory.RetryPolicy {
	return directory.RetryPolicy{
		InitialDelay: w.Retry.InitialDelay,
		MaxDelay:     w.Retry.MaxDelay,
		Multiplier:   w.Retry.Multiplier,
		MaxAttempts:  w.Retry.MaxAttempts,
	}
}
