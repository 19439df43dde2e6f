// Package config centralizes environment-variable configuration (§6.6). No
// other package reads os.Getenv directly; everything goes through Load.
package config

import (
	"os"
	"strings"
)

// Config holds the engine-wide settings sourced from the environment. CLI
// flags, layered on top by cmd/arcadeyaml, take precedence over these values.
type Config struct {
	DataDir             string
	OverlayDirs         []string
	SkipSchemaValidation bool
	LogLevel            string
	ModuleLogLevels     map[string]string
	LogDir              string
}

const moduleLogPrefix = "LOG_"

// Load reads the environment variables documented in §6.6 into a Config.
func Load() Config {
	cfg := Config{
		DataDir:  os.Getenv("DATA_DIR"),
		LogLevel: envOr("LOG_LEVEL", "info"),
		LogDir:   os.Getenv("LOG_DIR"),
	}

	if v := os.Getenv("OVERLAY_DIRS"); v != "" {
		cfg.OverlayDirs = strings.Split(v, string(os.PathListSeparator))
	}

	cfg.SkipSchemaValidation = envBool("SKIP_SCHEMA_VALIDATION")

	cfg.ModuleLogLevels = make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := parts[0]
		if key == "LOG_LEVEL" || key == "LOG_DIR" {
			continue
		}
		if strings.HasPrefix(key, moduleLogPrefix) {
			module := strings.TrimPrefix(key, moduleLogPrefix)
			cfg.ModuleLogLevels[module] = parts[1]
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
