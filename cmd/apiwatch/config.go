package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/apiwatch/internal/model"
	"github.com/tinytelemetry/apiwatch/internal/socketrpc"
)

const (
	defaultAPIAddr   = "127.0.0.1:3000"
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

var (
	defaultBackendHosts = []string{"supabase.co"}
	defaultSiteHosts    = []string{"localhost"}
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	APIAddr      string   `mapstructure:"api-addr"`
	BackendURL   string   `mapstructure:"backend-url"`
	BackendHosts []string `mapstructure:"backend-hosts"`
	SiteHosts    []string `mapstructure:"site-hosts"`
	SocketPath   string   `mapstructure:"socket-path"`

	SampleInterval       time.Duration `mapstructure:"sample-interval"`
	ProbeTimeout         time.Duration `mapstructure:"probe-timeout"`
	ProbeBaseURL         string        `mapstructure:"probe-base-url"`
	SlowThreshold        time.Duration `mapstructure:"slow-threshold"`
	FailureThreshold     int           `mapstructure:"failure-threshold"`
	MemoryWarnPercent    float64       `mapstructure:"memory-warn-percent"`
	ConnectivityInterval time.Duration `mapstructure:"connectivity-interval"`

	ThrottleWindow    time.Duration `mapstructure:"throttle-window"`
	ThrottleLimit     int           `mapstructure:"throttle-limit"`
	MaxCalls          int           `mapstructure:"max-calls"`
	MaxSnapshots      int           `mapstructure:"max-snapshots"`
	MaxThrottleEvents int           `mapstructure:"max-throttle-events"`
	MaxErrors         int           `mapstructure:"max-errors"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("APIWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("backend-url", "")
	v.SetDefault("backend-hosts", defaultBackendHosts)
	v.SetDefault("site-hosts", defaultSiteHosts)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("sample-interval", model.DefaultSampleInterval)
	v.SetDefault("probe-timeout", model.DefaultProbeTimeout)
	v.SetDefault("probe-base-url", "")
	v.SetDefault("slow-threshold", model.DefaultSlowThreshold)
	v.SetDefault("failure-threshold", model.DefaultFailureThreshold)
	v.SetDefault("memory-warn-percent", model.DefaultMemoryWarnPercent)
	v.SetDefault("connectivity-interval", model.DefaultConnectivityInterval)
	v.SetDefault("throttle-window", model.DefaultThrottleWindow)
	v.SetDefault("throttle-limit", model.DefaultThrottleLimit)
	v.SetDefault("max-calls", model.DefaultMaxCalls)
	v.SetDefault("max-snapshots", model.DefaultMaxSnapshots)
	v.SetDefault("max-throttle-events", model.DefaultMaxThrottleEvents)
	v.SetDefault("max-errors", model.DefaultMaxErrors)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "apiwatch", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if _, _, err := net.SplitHostPort(cfg.APIAddr); err != nil {
		return cfg, fmt.Errorf("invalid api-addr %q: %w", cfg.APIAddr, err)
	}
	if cfg.ThrottleLimit <= 0 {
		return cfg, fmt.Errorf("invalid throttle-limit: %d", cfg.ThrottleLimit)
	}
	if cfg.SampleInterval <= 0 {
		return cfg, fmt.Errorf("invalid sample-interval: %s", cfg.SampleInterval)
	}
	if cfg.FailureThreshold <= 0 {
		return cfg, fmt.Errorf("invalid failure-threshold: %d", cfg.FailureThreshold)
	}

	if cfg.ProbeBaseURL == "" {
		cfg.ProbeBaseURL = "http://" + cfg.APIAddr
	}
	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}

	return cfg, nil
}
