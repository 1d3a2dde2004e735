package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONTEXTPACK_"

const maxConfigFileSize = 1 << 20

// Load builds the configuration from defaults, the file at path (skipped when
// path is empty) and the environment, then validates it.
//
// The parser is chosen by extension: .toml uses TOML, anything else YAML.
// The file must not be writable by group or others.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), parserFor(path)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps CONTEXTPACK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return TOMLParser()
	}
	return yaml.Parser()
}

// readConfigFile opens path once and checks the open descriptor, so the
// checked file is the one read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o022 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults restores defaults for keys a file or env var explicitly
// zeroed where zero is never meaningful.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Dedup.Granularity == "" {
		cfg.Dedup.Granularity = d.Dedup.Granularity
	}
	if cfg.Retriever.Kind == "" {
		cfg.Retriever.Kind = d.Retriever.Kind
	}
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = d.Embeddings.Provider
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = d.Embeddings.Timeout
	}
	if cfg.Context.Separator == "" {
		cfg.Context.Separator = d.Context.Separator
	}
	if cfg.Secrets.Engine == "" {
		cfg.Secrets.Engine = d.Secrets.Engine
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = d.Ingest.Extensions
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
}
