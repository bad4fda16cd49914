package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides cfg from environment variables. Call after godotenv.Load so
// values from a .env file are visible. DATABASE_URL switches storage to postgres.
func ApplyEnv(cfg *Config) {
	applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		cfg.Storage.Driver = DriverPostgres
		cfg.Storage.DSN = v
	}
	if v, ok := lookup("KIOKU_STORAGE_DRIVER"); ok && v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := lookup("KIOKU_DATABASE_PATH"); ok && v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v, ok := lookup("KIOKU_EMBEDDING_PROVIDER"); ok && v != "" {
		cfg.Embedding.Provider = strings.ToLower(v)
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.Server.AllowedOrigins = origins
		}
	}
	if v, ok := lookup("KIOKU_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v, ok := lookup("HOST"); ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
}
