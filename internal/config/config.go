// Package config loads the layerd service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upload   UploadConfig   `mapstructure:"upload"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Segment  SegmentConfig  `mapstructure:"segment"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Caption  CaptionConfig  `mapstructure:"caption"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type OCRConfig struct {
	Language      string  `mapstructure:"language"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	Binarize      bool    `mapstructure:"binarize"`
}

type SegmentConfig struct {
	Iterations    int           `mapstructure:"iterations"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	MaxDimension  int           `mapstructure:"max_dimension"`
}

type PipelineConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	URL               string        `mapstructure:"url"`
	ConnTimeout       time.Duration `mapstructure:"conn_timeout"`
	RespTimeout       time.Duration `mapstructure:"resp_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxFailures       uint32        `mapstructure:"max_failures"`
}

type CaptionConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LimitsConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Load reads configuration from a YAML file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to defaults
// when the file is missing or unreadable.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/webp"})

	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.min_confidence", 0.3)
	v.SetDefault("ocr.binarize", true)

	v.SetDefault("segment.iterations", 5)
	v.SetDefault("segment.max_concurrent", 2)
	v.SetDefault("segment.queue_timeout", 10*time.Second)
	v.SetDefault("segment.max_dimension", 1200)

	v.SetDefault("pipeline.enabled", false)
	v.SetDefault("pipeline.url", "http://localhost:8000")
	v.SetDefault("pipeline.conn_timeout", 10*time.Second)
	v.SetDefault("pipeline.resp_timeout", 300*time.Second)
	v.SetDefault("pipeline.requests_per_second", 1.0)
	v.SetDefault("pipeline.max_failures", 3)

	v.SetDefault("caption.enabled", false)
	v.SetDefault("caption.url", "http://localhost:11434")
	v.SetDefault("caption.model", "llava")
	v.SetDefault("caption.timeout", 120*time.Second)

	v.SetDefault("limits.requests_per_second", 10.0)
	v.SetDefault("limits.burst", 20)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      20 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		},
		OCR: OCRConfig{
			Language:      "eng",
			MinConfidence: 0.3,
			Binarize:      true,
		},
		Segment: SegmentConfig{
			Iterations:    5,
			MaxConcurrent: 2,
			QueueTimeout:  10 * time.Second,
			MaxDimension:  1200,
		},
		Pipeline: PipelineConfig{
			Enabled:           false,
			URL:               "http://localhost:8000",
			ConnTimeout:       10 * time.Second,
			RespTimeout:       300 * time.Second,
			RequestsPerSecond: 1.0,
			MaxFailures:       3,
		},
		Caption: CaptionConfig{
			Enabled: false,
			URL:     "http://localhost:11434",
			Model:   "llava",
			Timeout: 120 * time.Second,
		},
		Limits: LimitsConfig{
			RequestsPerSecond: 10.0,
			Burst:             20,
		},
	}
}
