// Package config loads plantsim settings from flags, environment and a
// TOML file.
package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/plantsim/internal/alert"
	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/metrics"
	"codeberg.org/mutker/plantsim/internal/publish"
	"codeberg.org/mutker/plantsim/internal/session"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "PLANTSIM"
	configName = "plantsim"

	DefaultListen   = ":8080"
	DefaultInterval = 1500 * time.Millisecond
	DefaultLogLevel = logger.InfoLevel
	DefaultPIDFile  = "/run/plantsim.pid"
)

type Config struct {
	Listen   string          `mapstructure:"listen"`
	Interval time.Duration   `mapstructure:"interval"`
	Pages    []string        `mapstructure:"pages"`
	Seed     int64           `mapstructure:"seed"`
	LogLevel logger.LogLevel `mapstructure:"log_level"`
	Monitor  bool            `mapstructure:"monitor"`
	PIDFile  string          `mapstructure:"pid_file"`

	Metrics MetricsConfig         `mapstructure:"metrics"`
	MQTT    MQTTConfig            `mapstructure:"mqtt"`
	Alerts  map[string]alert.Rule `mapstructure:"alerts"`
}

type MetricsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DBPath       string        `mapstructure:"db_path"`
	BackupDir    string        `mapstructure:"backup_dir"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type MQTTConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Broker      string        `mapstructure:"broker"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	ClientID    string        `mapstructure:"client_id"`
	QoS         int           `mapstructure:"qos"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
}

// Archive converts to the archive's own configuration.
func (c MetricsConfig) Archive() metrics.Config {
	return metrics.Config{
		Enabled:      c.Enabled,
		DBPath:       c.DBPath,
		BackupDir:    c.BackupDir,
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout,
	}
}

// Publisher converts to the MQTT publisher's configuration.
func (c MQTTConfig) Publisher() publish.Config {
	return publish.Config{
		Broker:      c.Broker,
		TopicPrefix: c.TopicPrefix,
		ClientID:    c.ClientID,
		QoS:         byte(c.QoS),
		KeepAlive:   c.KeepAlive,
	}
}

func setDefaults(v *viper.Viper) {
	archive := metrics.DefaultConfig()

	v.SetDefault("listen", DefaultListen)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("pages", session.PageNames())
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("monitor", false)
	v.SetDefault("pid_file", DefaultPIDFile)

	v.SetDefault("metrics.enabled", archive.Enabled)
	v.SetDefault("metrics.db_path", archive.DBPath)
	v.SetDefault("metrics.backup_dir", archive.BackupDir)
	v.SetDefault("metrics.batch_size", archive.BatchSize)
	v.SetDefault("metrics.batch_timeout", archive.BatchTimeout)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", configName)
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.keep_alive", 30*time.Second)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)

	fs.String("config", "", "Path to a TOML configuration file")
	fs.String("listen", DefaultListen, "HTTP listen address")
	fs.Duration("interval", DefaultInterval, "Delay between ticks")
	fs.StringSlice("pages", nil, "Pages to run (default all)")
	fs.Int64("seed", 0, "Random seed for samplers, 0 seeds from the clock")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.Bool("monitor", false, "Log every tick")
	fs.String("pid-file", DefaultPIDFile, "PID file path")
	fs.Bool("metrics", false, "Archive tick records to SQLite")
	fs.String("metrics-db", "", "SQLite archive path")
	fs.Bool("mqtt", false, "Publish tick records over MQTT")
	fs.String("mqtt-broker", "", "MQTT broker address")

	return fs
}

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"listen":      "listen",
	"interval":    "interval",
	"pages":       "pages",
	"seed":        "seed",
	"log-level":   "log_level",
	"monitor":     "monitor",
	"pid-file":    "pid_file",
	"metrics":     "metrics.enabled",
	"metrics-db":  "metrics.db_path",
	"mqtt":        "mqtt.enabled",
	"mqtt-broker": "mqtt.broker",
}

// Load reads the configuration. args are the command-line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if len(cfg.Alerts) == 0 {
		cfg.Alerts = alert.DefaultRules()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/" + configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Interval string
		}{
			Interval: c.Interval.String(),
		})
	}

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, struct {
			LogLevel string
		}{
			LogLevel: string(c.LogLevel),
		})
	}

	for _, name := range c.Pages {
		if _, err := session.LookupPage(name); err != nil {
			return err
		}
	}

	if err := c.Metrics.Archive().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.QoS < 0 || c.MQTT.QoS > 2 || c.MQTT.KeepAlive < 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, struct {
				Broker string
				QoS    int
			}{
				Broker: c.MQTT.Broker,
				QoS:    c.MQTT.QoS,
			})
		}
	}

	return nil
}
