package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/switchboard"
	"github.com/sagarc03/switchboard/keybackend"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for switchboard.
type Config struct {
	Server  ServerConfig      `mapstructure:"server" yaml:"server"`
	Content ContentConfig     `mapstructure:"content" yaml:"content"`
	Access  AccessConfig      `mapstructure:"access" yaml:"access"`
	Auth    AuthConfig        `mapstructure:"auth" yaml:"auth"`
	CORS    CORSConfig        `mapstructure:"cors" yaml:"cors"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Metrics MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Log     LogConfig         `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds listener and I/O configuration.
type ServerConfig struct {
	Host               string        `mapstructure:"host" yaml:"host" validate:"required"`
	Port               int           `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	Listener           string        `mapstructure:"listener" yaml:"listener" validate:"required,oneof=native http"`
	KeepAlive          bool          `mapstructure:"keep_alive" yaml:"keep_alive"`
	TrustProxy         bool          `mapstructure:"trust_proxy" yaml:"trust_proxy"`
	BufferSize         int           `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=0"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size" yaml:"max_request_body_size" validate:"min=0"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// ContentConfig holds the content routes served from disk.
type ContentConfig struct {
	BaseDirectory string               `mapstructure:"base_directory" yaml:"base_directory"`
	DefaultFiles  []string             `mapstructure:"default_files" yaml:"default_files,omitempty"`
	Routes        []ContentRouteConfig `mapstructure:"routes" yaml:"routes,omitempty" validate:"dive"`
}

// ContentRouteConfig is one content route. Public routes are reachable
// without authentication.
type ContentRouteConfig struct {
	Path      string `mapstructure:"path" yaml:"path" validate:"required"`
	Directory bool   `mapstructure:"directory" yaml:"directory"`
	Public    bool   `mapstructure:"public" yaml:"public"`
}

// AccessConfig holds the source-address access control lists.
type AccessConfig struct {
	Mode       string   `mapstructure:"mode" yaml:"mode" validate:"required,oneof=default-permit default-deny"`
	Permit     []string `mapstructure:"permit" yaml:"permit,omitempty" validate:"dive,cidr|ip"`
	Deny       []string `mapstructure:"deny" yaml:"deny,omitempty" validate:"dive,cidr|ip"`
	DenyStatus int      `mapstructure:"deny_status" yaml:"deny_status" validate:"oneof=401 403"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode        string                `mapstructure:"mode" yaml:"mode" validate:"required,oneof=none basic presigned any"`
	Realm       string                `mapstructure:"realm" yaml:"realm,omitempty"`
	Region      string                `mapstructure:"region" yaml:"region" validate:"required_if=Mode presigned,required_if=Mode any"`
	Service     string                `mapstructure:"service" yaml:"service" validate:"required_if=Mode presigned,required_if=Mode any"`
	PublicPaths []string              `mapstructure:"public_paths" yaml:"public_paths,omitempty"`
	Keys        keybackend.KeysConfig `mapstructure:"keys" yaml:"keys"`
}

// CORSConfig holds the CORS policy. When disabled, the permissive default
// headers apply.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods,omitempty"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers,omitempty"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers,omitempty"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age" validate:"min=0"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Path      string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	// Format selects colored text (tint) for terminals or JSON lines for
	// log shippers.
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	// Source adds the calling file and line to each record.
	Source bool `mapstructure:"source" yaml:"source"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"listener":       "server.listener",
	"base-directory": "content.base_directory",
	"access-mode":    "access.mode",
	"auth-mode":      "auth.mode",
	"metrics":        "metrics.enabled",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// has a default so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.listener", "native")
	v.SetDefault("server.keep_alive", true)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.buffer_size", 64*1024)
	v.SetDefault("server.max_request_body_size", 0) // 0 means no limit
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("content.base_directory", ".")
	v.SetDefault("content.default_files", switchboard.DefaultFiles)
	v.SetDefault("content.routes", []map[string]any{})

	v.SetDefault("access.mode", "default-permit")
	v.SetDefault("access.permit", []string{})
	v.SetDefault("access.deny", []string{})
	v.SetDefault("access.deny_status", 403)

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.realm", "switchboard")
	v.SetDefault("auth.region", "us-east-1")
	v.SetDefault("auth.service", "s3")
	v.SetDefault("auth.public_paths", []string{})
	v.SetDefault("auth.keys.file", "")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "PUT", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "switchboard")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.source", false)
}

// Default returns the built-in configuration, ignoring files, environment
// and flags.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if c.Auth.Mode != "none" && len(c.Auth.Keys.Inline) == 0 && c.Auth.Keys.File == "" {
		return fmt.Errorf("validate config: auth mode %q needs keys: %w", c.Auth.Mode, switchboard.ErrInvalidConfig)
	}
	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("validate config: metrics enabled without a path: %w", switchboard.ErrInvalidConfig)
	}
	if c.Access.Mode == "default-deny" && len(c.Access.Permit) == 0 {
		slog.Warn("access mode default-deny with an empty permit list rejects every request")
	}
	return nil
}
