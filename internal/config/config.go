package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pre-resolution-lab/internal/logging"
	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

// Source names understood by the CLI and the API.
const (
	SourcePolymarket  = "polymarket"
	SourceHyperliquid = "hyperliquid"
)

// Error marks a fatal configuration problem. It is never retried.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(key, format string, args ...any) error {
	return &Error{Key: key, Err: fmt.Errorf(format, args...)}
}

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourcesConfig holds one credential set per dataset.
type SourcesConfig struct {
	Polymarket  SourceConfig `mapstructure:"polymarket"`
	Hyperliquid SourceConfig `mapstructure:"hyperliquid"`
}

// SourceConfig addresses one ClickHouse deployment. URL may be "host:port"
// or a full URL; explicit Host and Port win over it.
type SourceConfig struct {
	URL         string        `mapstructure:"url"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	Protocol    string        `mapstructure:"protocol"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// StrategyConfig are the analysis defaults used when a flag or query
// parameter is absent.
type StrategyConfig struct {
	LookbackDays  int     `mapstructure:"lookback_days"`
	PriceMin      float64 `mapstructure:"price_min"`
	PriceMax      float64 `mapstructure:"price_max"`
	OffsetMinutes int     `mapstructure:"offset_minutes"`
	MinInclusive  bool    `mapstructure:"min_inclusive"`
	MaxInclusive  bool    `mapstructure:"max_inclusive"`
}

// ServerConfig configures the dashboard API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	Burst           int           `mapstructure:"burst"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UpcomingLimit   int           `mapstructure:"upcoming_limit"`
}

// WatchConfig governs the periodic re-analysis.
type WatchConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	AlignToInterval  bool          `mapstructure:"align_to_interval"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
	MinExpectedValue float64       `mapstructure:"min_expected_value"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for alerts.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{Key: "env-file", Err: err}
	}
	return nil
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, &Error{Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return &Error{Err: fmt.Errorf("read config: %w", err)}
	}
	return nil
}

// legacyEnv maps the environment names used by the notebooks and dashboards
// onto config keys. The prefixed name is listed first so it takes precedence.
var legacyEnv = map[string]string{
	"sources.polymarket.url":       "POLY_CLICKHOUSE_URL",
	"sources.polymarket.username":  "POLY_CLICKHOUSE_USER",
	"sources.polymarket.password":  "POLY_CLICKHOUSE_PASSWORD",
	"sources.hyperliquid.url":      "HL_CLICKHOUSE_URL",
	"sources.hyperliquid.username": "HL_CLICKHOUSE_USER",
	"sources.hyperliquid.password": "HL_CLICKHOUSE_PASSWORD",
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := "PRLAB_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return &Error{Key: key, Err: err}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "prlab")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	for _, src := range []string{SourcePolymarket, SourceHyperliquid} {
		prefix := "sources." + src + "."
		v.SetDefault(prefix+"url", "")
		v.SetDefault(prefix+"host", "")
		v.SetDefault(prefix+"port", 0)
		v.SetDefault(prefix+"username", "")
		v.SetDefault(prefix+"password", "")
		v.SetDefault(prefix+"database", "default")
		v.SetDefault(prefix+"protocol", string(storage.ProtocolHTTP))
		v.SetDefault(prefix+"dial_timeout", "10s")
	}

	defaults := strategy.DefaultParams()
	v.SetDefault("strategy.lookback_days", defaults.LookbackDays)
	v.SetDefault("strategy.price_min", defaults.PriceMin)
	v.SetDefault("strategy.price_max", defaults.PriceMax)
	v.SetDefault("strategy.offset_minutes", defaults.OffsetMinutes)
	v.SetDefault("strategy.min_inclusive", false)
	v.SetDefault("strategy.max_inclusive", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.upcoming_limit", 50)

	v.SetDefault("watch.interval", "1h")
	v.SetDefault("watch.align_to_interval", true)
	v.SetDefault("watch.startup_delay", "0s")
	v.SetDefault("watch.min_expected_value", 0.0)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.dir", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Credentials are checked later, when a gateway is built for a source.
func (c *Config) Validate() error {
	if err := c.StrategyParams().Validate(); err != nil {
		return &Error{Key: "strategy", Err: err}
	}
	if c.Server.RateLimit < 0 {
		return invalid("server.rate_limit", "cannot be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst <= 0 {
		return invalid("server.burst", "must be greater than zero when rate limiting is on")
	}
	if c.Server.UpcomingLimit <= 0 {
		return invalid("server.upcoming_limit", "must be greater than zero")
	}
	if c.Watch.Interval <= 0 {
		return invalid("watch.interval", "must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return invalid("alerting.telegram.bot_token", "required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return invalid("alerting.telegram.chat_id", "required when telegram is enabled")
		}
	}
	return nil
}

// StrategyParams returns the configured analysis defaults. Reference is left
// zero so the analyzer uses the current time.
func (c *Config) StrategyParams() strategy.Params {
	return strategy.Params{
		LookbackDays:  c.Strategy.LookbackDays,
		PriceMin:      c.Strategy.PriceMin,
		PriceMax:      c.Strategy.PriceMax,
		OffsetMinutes: c.Strategy.OffsetMinutes,
		MinInclusive:  c.Strategy.MinInclusive,
		MaxInclusive:  c.Strategy.MaxInclusive,
	}
}

// Source looks up a credential set by name.
func (c *Config) Source(name string) (SourceConfig, error) {
	switch strings.ToLower(name) {
	case SourcePolymarket:
		return c.Sources.Polymarket, nil
	case SourceHyperliquid:
		return c.Sources.Hyperliquid, nil
	default:
		return SourceConfig{}, invalid("source", "unknown source %q", name)
	}
}

// Credentials resolves the source into gateway credentials. Completeness is
// validated by storage.NewGateway.
func (s SourceConfig) Credentials(name string) (storage.Credentials, error) {
	host, port := s.Host, s.Port
	if s.URL != "" {
		urlHost, urlPort, err := splitURL(s.URL)
		if err != nil {
			return storage.Credentials{}, invalid("sources."+name+".url", "%v", err)
		}
		if host == "" {
			host = urlHost
		}
		if port == 0 {
			port = urlPort
		}
	}

	return storage.Credentials{
		Source:      name,
		Host:        host,
		Port:        port,
		Username:    s.Username,
		Password:    s.Password,
		Database:    s.Database,
		Protocol:    storage.Protocol(strings.ToLower(s.Protocol)),
		DialTimeout: s.DialTimeout,
	}, nil
}

// splitURL accepts "host", "host:port" or "scheme://host[:port][/path]".
// A missing port is returned as zero so the transport default applies.
func splitURL(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", 0, err
		}
		raw = u.Host
	}
	if raw == "" {
		return "", 0, fmt.Errorf("empty host")
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return raw, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
