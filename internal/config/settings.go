package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type EngineConfig struct {
	Name    string        `mapstructure:"name"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Script  string        `mapstructure:"script"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	UploadDir   string `mapstructure:"upload_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

// DownloadConfig controls how http(s) inputs are fetched with yt-dlp.
type DownloadConfig struct {
	Format      string        `mapstructure:"format"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AutoInstall bool          `mapstructure:"auto_install"`
}

type Settings struct {
	Engine      EngineConfig   `mapstructure:"engine"`
	Label       string         `mapstructure:"label"`
	Workers     int            `mapstructure:"workers"`
	DropPartial bool           `mapstructure:"drop_partial"`
	DBPath      string         `mapstructure:"db_path"`
	TempDir     string         `mapstructure:"temp_dir"`
	SampleRate  int            `mapstructure:"sample_rate"`
	LogLevel    string         `mapstructure:"log_level"`
	Download    DownloadConfig `mapstructure:"download"`
	Server      ServerConfig   `mapstructure:"server"`
}

// flagKeys maps command-line flag names onto settings keys.
var flagKeys = map[string]string{
	"engine":       "engine.name",
	"engine-url":   "engine.url",
	"script":       "engine.script",
	"label":        "label",
	"workers":      "workers",
	"drop-partial": "drop_partial",
	"db":           "db_path",
	"temp":         "temp_dir",
	"rate":         "sample_rate",
	"port":         "server.port",
	"yt-format":    "download.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.name", "spectral")
	v.SetDefault("engine.url", "")
	v.SetDefault("engine.timeout", 60*time.Second)
	v.SetDefault("engine.script", "")
	v.SetDefault("label", "laughter")
	v.SetDefault("workers", 1)
	v.SetDefault("drop_partial", false)
	v.SetDefault("db_path", "")
	v.SetDefault("temp_dir", os.TempDir())
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("log_level", "")
	v.SetDefault("download.format", "ba")
	v.SetDefault("download.timeout", 3*time.Minute)
	v.SetDefault("download.auto_install", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_dir", os.TempDir())
	v.SetDefault("server.max_upload_mb", 100)
}

// Load resolves settings from, in increasing priority: defaults, an optional
// laughtrack.yaml (or the file named by LAUGH_CONFIG), LAUGH_* environment
// variables, and any flags in fs that were set explicitly.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LAUGH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := os.Getenv("LAUGH_CONFIG")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("laughtrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &settings, nil
}
