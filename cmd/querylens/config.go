package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/querylens/internal/logging"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/socketrpc"
)

const (
	defaultAPIAddr      = "127.0.0.1:3000"
	defaultCacheTTL     = model.DefaultCacheTTL
	defaultQueryTimeout = model.DefaultQueryTimeout
	defaultLogLevel     = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	LogType        string        `mapstructure:"log-type"`
	LogTarget      string        `mapstructure:"log-target"`
	DemoMode       bool          `mapstructure:"demo-mode"`
	DemoFixture    string        `mapstructure:"demo-fixture"`
	CacheTTL       time.Duration `mapstructure:"cache-ttl"`
	QueryTimeout   time.Duration `mapstructure:"query-timeout"`
	Strict         bool          `mapstructure:"strict"`
	InitSchema     bool          `mapstructure:"init-schema"`
	APIEnabled     bool          `mapstructure:"api-enabled"`
	APIAddr        string        `mapstructure:"api-addr"`
	SocketEnabled  bool          `mapstructure:"socket-enabled"`
	SocketPath     string        `mapstructure:"socket-path"`
	MetricsEnabled bool          `mapstructure:"metrics-enabled"`
	LogLevel       string        `mapstructure:"log-level"`
	LogFile        string        `mapstructure:"log-file"`
	ConfigPath     string        `mapstructure:"-"` // not from config file
}

// legacyEnv lists environment variables older deployments set without the
// QUERYLENS_ prefix.
var legacyEnv = map[string]string{
	"log-type":   "QUERY_LOG_TYPE",
	"log-target": "QUERY_LOG_TARGET",
	"demo-mode":  "DEMO_MODE",
}

func loadConfig(configPath string, cmd *cobra.Command) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("QUERYLENS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "QUERYLENS_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return cfg, err
		}
	}

	v.SetDefault("log-type", "")
	v.SetDefault("log-target", "")
	v.SetDefault("demo-mode", false)
	v.SetDefault("demo-fixture", "")
	v.SetDefault("cache-ttl", defaultCacheTTL)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("strict", false)
	v.SetDefault("init-schema", false)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("socket-enabled", true)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("metrics-enabled", true)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-file", logging.DefaultFile())

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return cfg, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "querylens", "config.yml"))
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
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if cfg.CacheTTL < 0 {
		return cfg, fmt.Errorf("invalid cache-ttl: %s", cfg.CacheTTL)
	}
	if cfg.QueryTimeout <= 0 {
		return cfg, fmt.Errorf("invalid query-timeout: %s", cfg.QueryTimeout)
	}

	// Expand ~ in paths
	cfg.LogTarget = expandHome(home, cfg.LogTarget)
	cfg.LogFile = expandHome(home, cfg.LogFile)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)
	cfg.DemoFixture = expandHome(home, cfg.DemoFixture)

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
