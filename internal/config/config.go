// Package config layers flags, YTDASH_* environment variables and an optional
// config.{yaml,toml,json} file into Settings.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ytdash/internal/dirs"
	"ytdash/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. YTDASH_OUT_DIR.
const EnvPrefix = "YTDASH"

// Settings is the resolved configuration.
type Settings struct {
	OutDir       string `mapstructure:"out_dir"`
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	DLBinary     string `mapstructure:"dl_binary"`
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
	Jobs         int    `mapstructure:"jobs"`
	NoHistory    bool   `mapstructure:"no_history"`

	Server   ServerSettings        `mapstructure:"server"`
	Download model.DownloadOptions `mapstructure:"download"`
}

// ServerSettings configures `ytdash serve`.
type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps persistent flag names to their config keys.
var flagKeys = map[string]string{
	"out-dir":       "out_dir",
	"verbose":       "verbose",
	"log-level":     "log_level",
	"dl-binary":     "dl_binary",
	"ffmpeg-binary": "ffmpeg_binary",
	"jobs":          "jobs",
	"no-history":    "no_history",
	"addr":          "server.addr",
}

// New returns a viper instance with defaults, env binding and the config
// search path set. configDir overrides the XDG config dir when non-empty.
func New(configDir string) *viper.Viper {
	v := viper.New()

	v.SetDefault("out_dir", dirs.DefaultOutputDir())
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "")
	v.SetDefault("dl_binary", "")
	v.SetDefault("ffmpeg_binary", "")
	v.SetDefault("jobs", 1)
	v.SetDefault("no_history", false)
	v.SetDefault("server.addr", ":8827")

	d := model.DefaultDownloadOptions()
	v.SetDefault("download.kind", string(d.Kind))
	v.SetDefault("download.max_height", d.MaxHeight)
	v.SetDefault("download.container", string(d.Container))
	v.SetDefault("download.audio_format", d.AudioFormat)
	v.SetDefault("download.audio_quality", d.AudioQuality)
	v.SetDefault("download.embed_subs", d.EmbedSubs)
	v.SetDefault("download.embed_thumbnail", d.EmbedThumbnail)
	v.SetDefault("download.write_subs", d.WriteSubs)
	v.SetDefault("download.write_thumbnail", d.WriteThumbnail)

	if configDir == "" {
		configDir = dirs.ConfigDir()
	}
	v.AddConfigPath(configDir)
	v.SetConfigName("config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every known flag present in fs to its config key. Flags
// only override file and env values when set on the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
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

// Load reads the config file, if any, and decodes Settings.
func Load(v *viper.Viper) (Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if s.Jobs < 1 {
		s.Jobs = 1
	}
	return s, nil
}
