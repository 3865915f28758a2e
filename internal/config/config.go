package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kairos/internal/logging"
	"kairos/internal/profile"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "KAIROS"

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

const (
	flagConfig   = "config"
	flagProfiles = "profiles"
	flagAddress  = "address"
)

var (
	profileName  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	bcryptHash   = regexp.MustCompile(`^\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}$`)
	errNoProfile = errors.New("at least one profile must be active")
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type ProfilesConfig struct {
	Active string `mapstructure:"active"`
}

type CacheConfig struct {
	TimeToLiveInDays int `mapstructure:"time_to_live_in_days"`
}

type CompressionConfig struct {
	MinSize int `mapstructure:"min_size"`
}

type HTTPConfig struct {
	Cache       CacheConfig       `mapstructure:"cache"`
	Compression CompressionConfig `mapstructure:"compression"`
}

type StaticConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ConsoleConfig struct {
	PasswordHash string `mapstructure:"password_hash"`
	MaxRows      int    `mapstructure:"max_rows"`
}

type MetricsConfig struct {
	CollectInterval time.Duration `mapstructure:"collect_interval"`
}

type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	StaticFiles  bool   `mapstructure:"static_files"`
	HealthChecks bool   `mapstructure:"health_checks"`
}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Static   StaticConfig   `mapstructure:"static"`
	Database DatabaseConfig `mapstructure:"database"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("profiles.active", profile.Default)
	v.SetDefault("http.cache.time_to_live_in_days", 1461)
	v.SetDefault("http.compression.min_size", 1024)
	v.SetDefault("static.dir", "./web")
	v.SetDefault("database.path", "./data/kairos.db")
	v.SetDefault("console.password_hash", "")
	v.SetDefault("console.max_rows", 1000)
	v.SetDefault("metrics.collect_interval", "1m")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.format", LogFormatConsole)
	v.SetDefault("logging.static_files", false)
	v.SetDefault("logging.health_checks", true)
}

// AddFlags registers the command-line flags understood by Load.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(flagConfig, "c", "", "Config file (default ./config/config.yaml or ./config.yaml)")
	fs.StringP(flagProfiles, "p", "", "Comma-separated active profiles, overrides profiles.active")
	fs.String(flagAddress, "", "Listen address, overrides server.address")
}

// Load reads defaults, an optional config file, KAIROS_ environment
// variables and the flags registered by AddFlags, in increasing order of
// precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for container deployments
	if err := v.BindEnv("server.address", EnvPrefix+"_SERVER_ADDRESS", "PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, err
	}

	configFile := ""
	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
		if f := fs.Lookup(flagConfig); f != nil {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logging.Debug("Config file not found, using defaults and environment variables")
	}

	// DEBUG wins over every other level source, as it does for the logger
	if logging.DebugRequested() {
		v.Set("logging.level", LogLevelDebug)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"profiles.active": flagProfiles,
		"server.address":  flagAddress,
	} {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// normalize accepts a bare port such as PORT=8080 as an address.
func (c *Config) normalize() {
	c.Server.Address = strings.TrimSpace(c.Server.Address)
	if c.Server.Address != "" && !strings.Contains(c.Server.Address, ":") {
		c.Server.Address = ":" + c.Server.Address
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// ActiveProfiles returns the parsed active profile set.
func (c *Config) ActiveProfiles() profile.Set {
	return profile.Parse(c.Profiles.Active)
}

// CacheTimeToLive returns http.cache.time_to_live_in_days as a duration.
func (c *Config) CacheTimeToLive() time.Duration {
	return time.Duration(c.HTTP.Cache.TimeToLiveInDays) * 24 * time.Hour
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Profiles),
		validation.Field(&c.HTTP),
		validation.Field(&c.Static),
		validation.Field(&c.Database),
		validation.Field(&c.Console),
		validation.Field(&c.Metrics),
		validation.Field(&c.Logging),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required, validation.By(validateHostPort)),
		validation.Field(&s.ShutdownTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.IdleTimeout, validation.Min(time.Duration(0))),
	)
}

func (p ProfilesConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Active, validation.By(validateProfiles)),
	)
}

func (h HTTPConfig) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Cache),
		validation.Field(&h.Compression),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TimeToLiveInDays, validation.Required, validation.Min(1)),
	)
}

func (c CompressionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MinSize, validation.Required, validation.Min(1)),
	)
}

func (s StaticConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Dir, validation.Required),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Path, validation.Required),
	)
}

func (c ConsoleConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PasswordHash, validation.Match(bcryptHash).Error("must be a bcrypt hash")),
		validation.Field(&c.MaxRows, validation.Required, validation.Min(1), validation.Max(100000)),
	)
}

func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.CollectInterval, validation.Required, validation.Min(time.Second)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&l.Format,
			validation.Required,
			validation.In(LogFormatConsole, LogFormatJSON),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return validation.NewError("validation_invalid_port", "port must be a number between 0 and 65535")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateProfiles(value interface{}) error {
	list, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	seen := 0
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !profileName.MatchString(name) {
			return validation.NewError("validation_invalid_profile", fmt.Sprintf("invalid profile name %q", name))
		}
		seen++
	}
	if seen == 0 && strings.TrimSpace(list) != "" {
		return validation.NewError("validation_no_profile", errNoProfile.Error())
	}
	return nil
}
