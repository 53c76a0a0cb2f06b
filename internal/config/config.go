// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package config loads server configuration from defaults, an optional
// YAML file, flags, and the environment.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values for server configuration.
const (
	DefaultHTTPAddr    = "127.0.0.1:3000"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultBaseURL     = "http://localhost:3000"
	DefaultEmailFrom   = "QuestForge <no-reply@questforge.example>"
)

// Server holds configuration for the serve command.
type Server struct {
	HTTPAddr    string `koanf:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`

	// BaseURL is the externally visible URL, used in redirects and
	// registration instructions.
	BaseURL string `koanf:"base_url"`

	EmailFrom string `koanf:"email_from"`
	SMTPAddr  string `koanf:"smtp_addr"`
	SMTPUser  string `koanf:"smtp_user"`
	SMTPPass  string `koanf:"smtp_pass"`

	FacebookClientID     string `koanf:"facebook_client_id"`
	FacebookClientSecret string `koanf:"facebook_client_secret"`
}

// Validate checks that the configuration is valid.
func (cfg *Server) Validate() error {
	if cfg.HTTPAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http-addr is required")
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (flag, config file, or DATABASE_URL)")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log-format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	return nil
}

// Load assembles a Server config. Precedence, lowest to highest:
// defaults, config file (when path is non-empty), environment
// (DATABASE_URL only), then explicitly set flags.
func Load(path string, flags *pflag.FlagSet) (*Server, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"http_addr":    DefaultHTTPAddr,
		"metrics_addr": DefaultMetricsAddr,
		"log_format":   DefaultLogFormat,
		"base_url":     DefaultBaseURL,
		"email_from":   DefaultEmailFrom,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Public("Could not read the config file.").
				Wrap(err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" && !k.Exists("database_url") {
		if err := k.Set("database_url", url); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	if flags != nil {
		// Flags are hyphenated on the command line but map to
		// underscore keys in the file and struct tags.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	cfg := &Server{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}
