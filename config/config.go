package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingRequired    = fmt.Errorf("%w: missing required setting", ErrInvalidConfig)
)

// MinPollInterval is the shortest accepted POLL_INTERVAL
const MinPollInterval = 100 * time.Millisecond

// Config represents the application configuration
type Config struct {
	Identity IdentityConfig
	Presence PresenceConfig
	Light    LightConfig
	Poll     PollConfig
	Logging  LoggingConfig
	History  HistoryConfig
	API      APIConfig
	MQTT     MQTTConfig
}

// IdentityConfig contains the certificate client-credential settings
type IdentityConfig struct {
	PEMPath       string
	TenantID      string
	ClientID      string
	AuthorityURL  string
	TokenLifetime time.Duration // used when the authority omits expires_in
	Timeout       time.Duration
}

// PresenceConfig contains Graph presence settings
type PresenceConfig struct {
	UserID           string
	GraphBaseURL     string
	Timeout          time.Duration
	ActiveActivities []string // empty means the built-in table
}

// LightConfig contains Key Light settings
type LightConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	DryRun  bool
}

// PollConfig contains loop timing
type PollConfig struct {
	Interval     time.Duration
	SafetyMargin time.Duration
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// HistoryConfig contains transition history settings
type HistoryConfig struct {
	DBPath string // empty disables history
}

// APIConfig contains status API settings
type APIConfig struct {
	Addr   string // empty disables the API
	APIKey string // empty disables authentication
}

// MQTTConfig contains MQTT publisher settings
type MQTTConfig struct {
	Broker      string // empty disables MQTT
	TopicPrefix string
	Username    string
	Password    string
}

// defaults for optional settings; keys double as lower-cased env names
var defaults = map[string]any{
	"keylight_port":       9123,
	"poll_interval":       5 * time.Second,
	"token_lifetime":      time.Hour,
	"token_safety_margin": 5 * time.Minute,
	"presence_timeout":    5 * time.Second,
	"light_timeout":       2 * time.Second,
	"auth_timeout":        10 * time.Second,
	"graph_base_url":      "https://graph.microsoft.com",
	"authority_url":       "https://login.microsoftonline.com",
	"active_activities":   []string{},
	"dry_run":             false,
	"log_level":           "info",
	"log_format":          "json",
	"db_path":             "",
	"status_addr":         "",
	"status_api_key":      "",
	"mqtt_broker":         "",
	"mqtt_topic_prefix":   "presencelight",
	"mqtt_username":       "",
	"mqtt_password":       "",
	"pem_path":            "",
	"tenant_id":           "",
	"client_id":           "",
	"user_id":             "",
	"keylight_ip":         "",
}

// flagKeys maps command-line flags to config keys
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"log-format": "log_format",
	"dry-run":    "dry_run",
}

// NewFlagSet returns the command-line flags understood by Load
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "path to a config file (json, yaml or toml); environment variables override it")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or text")
	flags.Bool("dry-run", false, "log light commands instead of sending them")
	flags.Bool("thumbprint", false, "print the certificate thumbprint and exit")
	flags.BoolP("help", "h", false, "show help")
	return flags
}

// Load reads the configuration and validates it
func Load(flags *pflag.FlagSet) (*Config, error) {
	config, err := Read(flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Read builds the configuration from defaults, the optional config file,
// environment variables and flags, in increasing precedence. It does not
// validate.
func Read(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}

		if path, _ := flags.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) || isNotExist(err) {
					return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
				}
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	durations := durationReader{v: v}

	config := &Config{
		Identity: IdentityConfig{
			PEMPath:       v.GetString("pem_path"),
			TenantID:      v.GetString("tenant_id"),
			ClientID:      v.GetString("client_id"),
			AuthorityURL:  v.GetString("authority_url"),
			TokenLifetime: durations.get("token_lifetime"),
			Timeout:       durations.get("auth_timeout"),
		},
		Presence: PresenceConfig{
			UserID:           v.GetString("user_id"),
			GraphBaseURL:     v.GetString("graph_base_url"),
			Timeout:          durations.get("presence_timeout"),
			ActiveActivities: splitList(v.GetStringSlice("active_activities")),
		},
		Light: LightConfig{
			Host:    v.GetString("keylight_ip"),
			Port:    v.GetInt("keylight_port"),
			Timeout: durations.get("light_timeout"),
			DryRun:  v.GetBool("dry_run"),
		},
		Poll: PollConfig{
			Interval:     durations.get("poll_interval"),
			SafetyMargin: durations.get("token_safety_margin"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
		History: HistoryConfig{
			DBPath: v.GetString("db_path"),
		},
		API: APIConfig{
			Addr:   v.GetString("status_addr"),
			APIKey: v.GetString("status_api_key"),
		},
		MQTT: MQTTConfig{
			Broker:      v.GetString("mqtt_broker"),
			TopicPrefix: v.GetString("mqtt_topic_prefix"),
			Username:    v.GetString("mqtt_username"),
			Password:    v.GetString("mqtt_password"),
		},
	}
	if durations.err != nil {
		return nil, durations.err
	}

	return config, nil
}

// durationReader reads duration settings, keeping the first error.
// Bare numbers are seconds; anything else must be a Go duration ("500ms", "1h").
type durationReader struct {
	v   *viper.Viper
	err error
}

func (r *durationReader) get(key string) time.Duration {
	d, err := parseDuration(r.v.Get(key))
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s: %v", ErrInvalidConfig, strings.ToUpper(key), err)
		}
		return 0
	}
	return d
}

func parseDuration(value any) (time.Duration, error) {
	switch val := value.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("invalid duration %v", val)
		}
		return time.Duration(val * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(val)
		if secs, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", value)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"PEM_PATH", c.Identity.PEMPath},
		{"TENANT_ID", c.Identity.TenantID},
		{"CLIENT_ID", c.Identity.ClientID},
		{"USER_ID", c.Presence.UserID},
		{"KEYLIGHT_IP", c.Light.Host},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequired, r.name)
		}
	}

	if c.Light.Port <= 0 || c.Light.Port > 65535 {
		return fmt.Errorf("%w: invalid keylight port %d", ErrInvalidConfig, c.Light.Port)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"POLL_INTERVAL", c.Poll.Interval},
		{"TOKEN_LIFETIME", c.Identity.TokenLifetime},
		{"PRESENCE_TIMEOUT", c.Presence.Timeout},
		{"LIGHT_TIMEOUT", c.Light.Timeout},
		{"AUTH_TIMEOUT", c.Identity.Timeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, d.name)
		}
	}

	if c.Poll.Interval < MinPollInterval {
		return fmt.Errorf("%w: POLL_INTERVAL must be at least %s", ErrInvalidConfig, MinPollInterval)
	}

	if c.Poll.SafetyMargin < 0 || c.Poll.SafetyMargin >= c.Identity.TokenLifetime {
		return fmt.Errorf("%w: TOKEN_SAFETY_MARGIN must be between 0 and TOKEN_LIFETIME", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// splitList accepts both list values and comma or space separated strings
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		out = append(out, strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})...)
	}
	return out
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
