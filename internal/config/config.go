package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	IntervalHours      int      `mapstructure:"interval_hours"`
	NetworkPollSeconds int      `mapstructure:"network_poll_seconds"`
	Backend            string   `mapstructure:"backend"`
	ExcludeArchs       []string `mapstructure:"exclude_archs"`
	InstallerPath      string   `mapstructure:"installer_path"`
	AskpassPath        string   `mapstructure:"askpass_path"`
	NotifyEnabled      bool     `mapstructure:"notify_enabled"`
	SocketPath         string   `mapstructure:"socket_path"`
	LogFormat          string   `mapstructure:"log_format"`
	LogLevel           string   `mapstructure:"log_level"`
	LogFile            string   `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		IntervalHours:      24,
		NetworkPollSeconds: 60,
		Backend:            "auto",
		InstallerPath:      "updaterd-install",
		AskpassPath:        "/usr/lib/updaterd/askpass.sh",
		NotifyEnabled:      true,
		SocketPath:         "/run/updaterd/control.sock",
		LogFormat:          "text",
		LogLevel:           "info",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("updaterd")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("UPDATERD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("interval_hours", cfg.IntervalHours)
	v.Set("network_poll_seconds", cfg.NetworkPollSeconds)
	v.Set("backend", cfg.Backend)
	v.Set("exclude_archs", cfg.ExcludeArchs)
	v.Set("installer_path", cfg.InstallerPath)
	v.Set("askpass_path", cfg.AskpassPath)
	v.Set("notify_enabled", cfg.NotifyEnabled)
	v.Set("socket_path", cfg.SocketPath)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_file", cfg.LogFile)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "updaterd.yaml")
		if err := os.MkdirAll(configDir(), 0755); err != nil {
			return err
		}
	}

	return v.WriteConfigAs(cfgPath)
}

func configDir() string {
	return "/etc/updaterd"
}
