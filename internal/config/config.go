// Package config loads process settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	APIKey   string `yaml:"api_key"`

	DatabaseURL  string `yaml:"database_url"`
	StoreBackend string `yaml:"store_backend"`

	Storage struct {
		Backend        string `yaml:"backend"`
		UploadDir      string `yaml:"upload_dir"`
		S3Bucket       string `yaml:"s3_bucket"`
		S3Prefix       string `yaml:"s3_prefix"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"storage"`

	SegmentDuration float64 `yaml:"segment_duration"`

	Transcription struct {
		Backend  string        `yaml:"backend"`
		APIKey   string        `yaml:"api_key"`
		BaseURL  string        `yaml:"base_url"`
		Model    string        `yaml:"model"`
		Language string        `yaml:"language"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"transcription"`

	MCQ struct {
		Backend    string        `yaml:"backend"`
		ServiceURL string        `yaml:"service_url"`
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url"`
		Model      string        `yaml:"model"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"mcq"`

	Search struct {
		Enabled      bool   `yaml:"enabled"`
		OpenAIAPIKey string `yaml:"openai_api_key"`
	} `yaml:"search"`

	Worker struct {
		Mode       string `yaml:"mode"`
		Count      int    `yaml:"count"`
		QueueDepth int    `yaml:"queue_depth"`
	} `yaml:"worker"`

	Media struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
	} `yaml:"media"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Default() *Config {
	cfg := &Config{
		HTTPAddr:        ":8080",
		StoreBackend:    "postgres",
		SegmentDuration: 300,
	}
	cfg.Storage.Backend = "fs"
	cfg.Storage.UploadDir = "uploads"
	cfg.Storage.MaxUploadBytes = 500 << 20
	cfg.Transcription.Backend = "whisper"
	cfg.Transcription.Timeout = 10 * time.Minute
	cfg.MCQ.Backend = "http"
	cfg.MCQ.ServiceURL = "http://localhost:8000/generate-mcqs"
	cfg.MCQ.Timeout = 2 * time.Minute
	cfg.Worker.Mode = "inline"
	cfg.Worker.Count = 2
	cfg.Worker.QueueDepth = 64
	cfg.Media.FFmpegPath = "ffmpeg"
	cfg.Media.FFprobePath = "ffprobe"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads .env, then the YAML file at path (if it exists), then the
// environment. An empty path means CONFIG_FILE or config.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("SERVICE_API_KEY", &c.APIKey)

	if url := databaseURL(); url != "" {
		c.DatabaseURL = url
	}
	str("STORE_BACKEND", &c.StoreBackend)

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("UPLOAD_DIR", &c.Storage.UploadDir)
	str("S3_BUCKET_NAME", &c.Storage.S3Bucket)
	str("S3_PREFIX", &c.Storage.S3Prefix)
	if v, ok := os.LookupEnv("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.Storage.MaxUploadBytes = n
		}
	}
	if v, ok := os.LookupEnv("SEGMENT_DURATION"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEGMENT_DURATION: %w", err))
		} else {
			c.SegmentDuration = f
		}
	}

	str("TRANSCRIPTION_BACKEND", &c.Transcription.Backend)
	str("TRANSCRIPTION_API_KEY", &c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		str("LEMONFOX_API_KEY", &c.Transcription.APIKey)
	}
	str("TRANSCRIPTION_BASE_URL", &c.Transcription.BaseURL)
	str("TRANSCRIPTION_MODEL", &c.Transcription.Model)
	str("TRANSCRIPTION_LANGUAGE", &c.Transcription.Language)

	str("MCQ_BACKEND", &c.MCQ.Backend)
	str("MCQ_SERVICE_URL", &c.MCQ.ServiceURL)
	str("MCQ_API_KEY", &c.MCQ.APIKey)
	str("MCQ_BASE_URL", &c.MCQ.BaseURL)
	str("MCQ_MODEL", &c.MCQ.Model)

	if v, ok := os.LookupEnv("SEARCH_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEARCH_ENABLED: %w", err))
		} else {
			c.Search.Enabled = b
		}
	}
	str("OPENAI_API_KEY", &c.Search.OpenAIAPIKey)

	str("WORKER_MODE", &c.Worker.Mode)
	num("WORKER_COUNT", &c.Worker.Count)
	num("QUEUE_DEPTH", &c.Worker.QueueDepth)

	str("FFMPEG_PATH", &c.Media.FFmpegPath)
	str("FFPROBE_PATH", &c.Media.FFprobePath)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and falls back to
// DATABASE_URL_<DATABASE_ID>, DATABASE_ID defaulting to DEFAULT.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	dbID := os.Getenv("DATABASE_ID")
	if dbID == "" {
		dbID = "DEFAULT"
	}
	return os.Getenv("DATABASE_URL_" + strings.ToUpper(dbID))
}

func (c *Config) Validate() error {
	var errs []error
	oneOf := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value))
	}

	oneOf("store backend", c.StoreBackend, "postgres", "memory")
	oneOf("storage backend", c.Storage.Backend, "fs", "s3")
	oneOf("transcription backend", c.Transcription.Backend, "whisper", "vtt")
	oneOf("mcq backend", c.MCQ.Backend, "http", "openai")
	oneOf("worker mode", c.Worker.Mode, "inline", "external")
	oneOf("log format", c.Log.Format, "json", "text")

	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
	}
	if c.Storage.Backend == "s3" && c.Storage.S3Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET_NAME is required for the s3 storage backend"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if c.SegmentDuration <= 0 {
		errs = append(errs, errors.New("segment duration must be positive"))
	}
	if c.Transcription.APIKey == "" {
		errs = append(errs, errors.New("TRANSCRIPTION_API_KEY is required"))
	}
	if c.MCQ.Backend == "http" && c.MCQ.ServiceURL == "" {
		errs = append(errs, errors.New("MCQ_SERVICE_URL is required for the http mcq backend"))
	}
	if c.MCQ.Backend == "openai" && c.MCQ.APIKey == "" && c.MCQ.BaseURL == "" {
		errs = append(errs, errors.New("MCQ_API_KEY or MCQ_BASE_URL is required for the openai mcq backend"))
	}
	if c.Search.Enabled {
		if c.Search.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when search is enabled"))
		}
		if c.StoreBackend != "postgres" {
			errs = append(errs, errors.New("search requires the postgres store"))
		}
	}
	if c.Worker.Mode == "external" && c.StoreBackend != "postgres" {
		errs = append(errs, errors.New("external workers require the postgres store"))
	}
	if c.Worker.Count <= 0 {
		errs = append(errs, errors.New("worker count must be positive"))
	}
	if c.Worker.QueueDepth <= 0 {
		errs = append(errs, errors.New("queue depth must be positive"))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
