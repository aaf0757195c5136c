// Package config loads the broker process configuration from the environment
// and the per-symbol offset settings from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sim-broker/internal/engine"
	"sim-broker/internal/engine/offset"
)

type Config struct {
	HTTPAddr        string
	DefaultAccount  string
	PrimaryExchange string
	StartID         uint64
	LogLevel        string
	OffsetsFile     string
	TicksFile       string
	CORSOrigins     []string
}

func Default() Config {
	def := engine.DefaultConfig()
	return Config{
		HTTPAddr:        ":8080",
		DefaultAccount:  def.DefaultAccount,
		PrimaryExchange: def.PrimaryExchange,
		StartID:         def.StartID,
		LogLevel:        "info",
		CORSOrigins:     []string{"*"},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return cfg, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	} else {
		_ = godotenv.Load() // optional .env in the working directory
	}

	cfg.HTTPAddr = getEnv("BROKER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.DefaultAccount = getEnv("BROKER_DEFAULT_ACCOUNT", cfg.DefaultAccount)
	cfg.PrimaryExchange = getEnv("BROKER_PRIMARY_EXCHANGE", cfg.PrimaryExchange)
	cfg.LogLevel = getEnv("BROKER_LOG_LEVEL", cfg.LogLevel)
	cfg.OffsetsFile = getEnv("BROKER_OFFSETS_FILE", cfg.OffsetsFile)
	cfg.TicksFile = getEnv("BROKER_TICKS_FILE", cfg.TicksFile)

	if v := os.Getenv("BROKER_START_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("BROKER_START_ID: %w", err)
		}
		cfg.StartID = id
	}
	if v := os.Getenv("BROKER_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return cfg, nil
}

// Engine returns the engine settings carried by cfg.
func (c Config) Engine() engine.Config {
	return engine.Config{
		DefaultAccount:  c.DefaultAccount,
		PrimaryExchange: c.PrimaryExchange,
		StartID:         c.StartID,
	}
}

// Offsets is the YAML layout of the offsets file.
type Offsets struct {
	Default *offset.Info           `yaml:"default"`
	Ignore  []string               `yaml:"ignore"`
	Symbols map[string]offset.Info `yaml:"symbols"`
}

// LoadOffsets parses the offsets file at path.
func LoadOffsets(path string) (Offsets, error) {
	var out Offsets
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read offsets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse offsets file: %w", err)
	}
	if out.Default != nil {
		fillPercents(out.Default)
	}
	for sym, info := range out.Symbols {
		fillPercents(&info)
		out.Symbols[sym] = info
	}
	return out, nil
}

// Apply installs the offsets on t.
func (o Offsets) Apply(t *offset.Tracker) {
	if o.Default != nil {
		t.SetDefault(*o.Default)
	}
	t.SetIgnore(o.Ignore...)
	for sym, info := range o.Symbols {
		t.SetOffset(sym, info)
	}
}

// an omitted percent covers the whole position
func fillPercents(info *offset.Info) {
	one := offset.DefaultInfo().ProfitPercent
	if info.ProfitPercent.IsZero() {
		info.ProfitPercent = one
	}
	if info.StopPercent.IsZero() {
		info.StopPercent = one
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
