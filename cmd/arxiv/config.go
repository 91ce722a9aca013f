package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the binary.
type Config struct {
	StoragePath    string
	IndexPath      string
	MaxResults     int
	RequestTimeout time.Duration
	Workers        int
	QueueSize      int
	KeepPDF        bool
	PDFToText      string
	JobTTL         time.Duration
	LogLevel       string
	LogFormat      string
	Transport      string
	Addr           string
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "papers")
	}
	return filepath.Join(home, ".cache", "arxiv-mcp", "papers")
}

// newViper returns a viper instance reading ARXIV_* environment variables
// with defaults set.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ARXIV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage_path", defaultStoragePath())
	v.SetDefault("index_path", "")
	v.SetDefault("max_results", 50)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("workers", 2)
	v.SetDefault("queue_size", 64)
	v.SetDefault("keep_pdf", false)
	v.SetDefault("pdftotext", "pdftotext")
	v.SetDefault("job_ttl", time.Duration(0))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("transport", "stdio")
	v.SetDefault("addr", ":8080")
	return v
}

// bindFlags makes flags override env and defaults. Flag "storage-path"
// maps to key "storage_path".
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// loadConfig reads .env (if present) and resolves the configuration.
func loadConfig(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		StoragePath:    expandHome(v.GetString("storage_path")),
		IndexPath:      expandHome(v.GetString("index_path")),
		MaxResults:     v.GetInt("max_results"),
		RequestTimeout: v.GetDuration("request_timeout"),
		Workers:        v.GetInt("workers"),
		QueueSize:      v.GetInt("queue_size"),
		KeepPDF:        v.GetBool("keep_pdf"),
		PDFToText:      v.GetString("pdftotext"),
		JobTTL:         v.GetDuration("job_ttl"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		Transport:      v.GetString("transport"),
		Addr:           v.GetString("addr"),
	}
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("storage_path must not be empty")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.StoragePath, "index.db")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	switch cfg.Transport {
	case "stdio", "http":
	default:
		return nil, fmt.Errorf("unknown transport %q (want stdio or http)", cfg.Transport)
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// newLogger builds the process logger. It always writes to w (stderr in
// practice): stdout carries the stdio transport.
func newLogger(cfg *Config, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
