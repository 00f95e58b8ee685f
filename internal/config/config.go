package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Session   SessionConfig   `mapstructure:"session"`
	Poll      PollConfig      `mapstructure:"poll"`
	Report    ReportConfig    `mapstructure:"report"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	DevServer DevServerConfig `mapstructure:"devserver"`
}

type BackendConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	ExecutePath       string        `mapstructure:"execute_path"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HintMaxTokens     int           `mapstructure:"hint_max_tokens"`
	AnalysisMaxTokens int           `mapstructure:"analysis_max_tokens"`
}

type SessionConfig struct {
	StatePath string `mapstructure:"state_path"`
}

type PollConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

type ReportConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // "debug" | "release"
	File string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type DevServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RoomRetention keeps a room around after every guest finished.
	RoomRetention time.Duration `mapstructure:"room_retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.execute_path", "/execute-TimeAndResult")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.hint_max_tokens", 300)
	v.SetDefault("backend.analysis_max_tokens", 500)
	v.SetDefault("session.state_path", ".codive/session.json")
	v.SetDefault("poll.stats_interval", 5*time.Second)
	v.SetDefault("report.concurrency", 4)
	v.SetDefault("log.mode", "release")
	v.SetDefault("log.file", "logs/codive.log")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("devserver.addr", ":8000")
	v.SetDefault("devserver.room_retention", 10*time.Minute)
}

// Load reads config.yaml from dir (optional), then .env, CODIVE_* environment
// variables and finally any flags set on fs, later sources winning.
func Load(dir string, fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CODIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"backend":  "backend.base_url",
	"state":    "session.state_path",
	"log-mode": "log.mode",
	"log-file": "log.file",
	"metrics":  "metrics.addr",
	"addr":     "devserver.addr",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url must be set")
	}
	if c.Poll.StatsInterval <= 0 {
		return fmt.Errorf("poll.stats_interval must be positive, got %s", c.Poll.StatsInterval)
	}
	if c.Report.Concurrency < 1 {
		c.Report.Concurrency = 1
	}
	switch c.Log.Mode {
	case "debug", "release":
	default:
		return fmt.Errorf("log.mode must be debug or release, got %q", c.Log.Mode)
	}
	return nil
}
