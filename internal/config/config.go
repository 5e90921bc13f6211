// Package config loads the bikesearch configuration from defaults, an
// optional YAML file, a .env file, BIKESEARCH_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/bikesearch/internal/validate"
	"github.com/adamwoolhether/bikesearch/query"
)

// EnvPrefix prefixes every environment variable read, with "." in a key
// replaced by "_": output.root is BIKESEARCH_OUTPUT_ROOT.
const EnvPrefix = "BIKESEARCH"

// Config is the effective configuration of a run.
type Config struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Progress  bool          `mapstructure:"progress" yaml:"progress"`
	Output    Output        `mapstructure:"output" yaml:"output"`
	HTTP      HTTP          `mapstructure:"http" yaml:"http"`
	Log       Log           `mapstructure:"log" yaml:"log"`
	S3        S3            `mapstructure:"s3" yaml:"s3"`
}

// Output controls where files are written.
type Output struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// HTTP tunes the outbound client. A zero RateLimit disables throttling.
type HTTP struct {
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int `mapstructure:"burst" yaml:"burst" validate:"required_with=RateLimit,gte=0"`
}

// Log configures the structured logger. An empty File logs to stderr.
type Log struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
}

// S3 configures the optional object storage mirror. It is off while
// Endpoint is empty.
type S3 struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,hostname_port"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key" validate:"required_with=Endpoint"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key" validate:"required_with=Endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket" validate:"required_with=Endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Enabled reports whether outputs should be mirrored.
func (s S3) Enabled() bool {
	return s.Endpoint != ""
}

// Redacted returns a copy with secrets masked, fit for printing.
func (c Config) Redacted() Config {
	if c.S3.SecretKey != "" {
		c.S3.SecretKey = "********"
	}

	return c
}

var defaults = map[string]any{
	"base_url":        query.DefaultBaseURL,
	"timeout":         query.DefaultTimeout,
	"user_agent":      "",
	"progress":        false,
	"output.root":     "",
	"http.rate_limit": 0,
	"http.burst":      0,
	"log.level":       "warn",
	"log.file":        "",
	"log.max_size":    10,
	"log.max_backups": 5,
	"log.max_age":     30,
	"s3.endpoint":     "",
	"s3.access_key":   "",
	"s3.secret_key":   "",
	"s3.bucket":       "",
	"s3.region":       "",
	"s3.prefix":       "",
	"s3.use_ssl":      true,
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"base-url":    "base_url",
	"timeout":     "timeout",
	"output-root": "output.root",
	"log-level":   "log.level",
	"progress":    "progress",
}

// Load resolves the configuration and validates it.
func Load(optFns ...Option) (Config, error) {
	opts := options{envFile: ".env"}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return Config{}, fmt.Errorf("applying config option: %w", err)
		}
	}

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", opts.envFile, err)
		}
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, opts.file); err != nil {
		return Config{}, err
	}

	if opts.flags != nil {
		for name, key := range flagKeys {
			flag := opts.flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := validate.Check(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// readFile reads the named file, or config.yml from the user config
// directory when file is empty. Only an explicitly named file must exist.
func readFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		return nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(dir, "bikesearch"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	return nil
}

// Option is a functional option for [Load].
type Option func(*options) error

type options struct {
	file    string
	envFile string
	flags   *pflag.FlagSet
}

// WithFile reads the given YAML file instead of searching the user config
// directory. The file must exist.
func WithFile(path string) Option {
	return func(o *options) error {
		o.file = path
		return nil
	}
}

// WithEnvFile loads variables from path instead of ./.env. An empty path
// skips the .env step. Variables already in the environment win.
func WithEnvFile(path string) Option {
	return func(o *options) error {
		o.envFile = path
		return nil
	}
}

// WithFlags overlays flags that were set on the command line.
func WithFlags(flags *pflag.FlagSet) Option {
	return func(o *options) error {
		if flags == nil {
			return errors.New("flag set must not be nil")
		}
		o.flags = flags
		return nil
	}
}
