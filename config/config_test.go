package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PEM_PATH", "/etc/presencelight/app.pem")
	t.Setenv("TENANT_ID", "tenant-123")
	t.Setenv("CLIENT_ID", "client-456")
	t.Setenv("USER_ID", "user-789")
	t.Setenv("KEYLIGHT_IP", "192.168.1.50")
}

func validConfig() Config {
	return Config{
		Identity: IdentityConfig{
			PEMPath:       "/etc/presencelight/app.pem",
			TenantID:      "tenant-123",
			ClientID:      "client-456",
			TokenLifetime: time.Hour,
			Timeout:       10 * time.Second,
		},
		Presence: PresenceConfig{UserID: "user-789", Timeout: 5 * time.Second},
		Light:    LightConfig{Host: "192.168.1.50", Port: 9123, Timeout: 2 * time.Second},
		Poll:     PollConfig{Interval: 5 * time.Second, SafetyMargin: 5 * time.Minute},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		wantErr     bool
		wantMissing bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "missing pem path",
			modify:      func(c *Config) { c.Identity.PEMPath = "" },
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "missing tenant",
			modify:      func(c *Config) { c.Identity.TenantID = "  " },
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "missing user",
			modify:      func(c *Config) { c.Presence.UserID = "" },
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:        "missing keylight ip",
			modify:      func(c *Config) { c.Light.Host = "" },
			wantErr:     true,
			wantMissing: true,
		},
		{
			name:    "invalid port - zero",
			modify:  func(c *Config) { c.Light.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port - too large",
			modify:  func(c *Config) { c.Light.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			modify:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "poll interval below minimum",
			modify:  func(c *Config) { c.Poll.Interval = 50 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "poll interval at minimum",
			modify:  func(c *Config) { c.Poll.Interval = MinPollInterval },
			wantErr: false,
		},
		{
			name:    "negative light timeout",
			modify:  func(c *Config) { c.Light.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "safety margin not below lifetime",
			modify:  func(c *Config) { c.Poll.SafetyMargin = time.Hour },
			wantErr: true,
		},
		{
			name:    "zero safety margin",
			modify:  func(c *Config) { c.Poll.SafetyMargin = 0 },
			wantErr: false,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)

			err := config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				if tt.wantMissing {
					assert.ErrorIs(t, err, ErrMissingRequired)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	config, err := Load(NewFlagSet("test"))
	require.NoError(t, err)

	assert.Equal(t, "/etc/presencelight/app.pem", config.Identity.PEMPath)
	assert.Equal(t, "tenant-123", config.Identity.TenantID)
	assert.Equal(t, "client-456", config.Identity.ClientID)
	assert.Equal(t, "user-789", config.Presence.UserID)
	assert.Equal(t, "192.168.1.50", config.Light.Host)

	assert.Equal(t, 9123, config.Light.Port)
	assert.Equal(t, 5*time.Second, config.Poll.Interval)
	assert.Equal(t, time.Hour, config.Identity.TokenLifetime)
	assert.Equal(t, 5*time.Minute, config.Poll.SafetyMargin)
	assert.Equal(t, 5*time.Second, config.Presence.Timeout)
	assert.Equal(t, 2*time.Second, config.Light.Timeout)
	assert.Equal(t, 10*time.Second, config.Identity.Timeout)
	assert.Equal(t, "https://graph.microsoft.com", config.Presence.GraphBaseURL)
	assert.Equal(t, "https://login.microsoftonline.com", config.Identity.AuthorityURL)
	assert.Empty(t, config.Presence.ActiveActivities)
	assert.False(t, config.Light.DryRun)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Empty(t, config.History.DBPath)
	assert.Empty(t, config.API.Addr)
	assert.Empty(t, config.MQTT.Broker)
	assert.Equal(t, "presencelight", config.MQTT.TopicPrefix)
}

func TestLoad_FromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KEYLIGHT_PORT", "9999")
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("TOKEN_SAFETY_MARGIN", "2m")
	t.Setenv("ACTIVE_ACTIVITIES", "InACall, Presenting,InAMeeting")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DB_PATH", "/var/lib/presencelight/history.db")
	t.Setenv("STATUS_ADDR", ":8080")
	t.Setenv("MQTT_BROKER", "mqtt://broker:1883")

	config, err := Load(NewFlagSet("test"))
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Light.Port)
	assert.Equal(t, 10*time.Second, config.Poll.Interval)
	assert.Equal(t, 2*time.Minute, config.Poll.SafetyMargin)
	assert.Equal(t, []string{"InACall", "Presenting", "InAMeeting"}, config.Presence.ActiveActivities)
	assert.True(t, config.Light.DryRun)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/var/lib/presencelight/history.db", config.History.DBPath)
	assert.Equal(t, ":8080", config.API.Addr)
	assert.Equal(t, "mqtt://broker:1883", config.MQTT.Broker)
}

func TestLoad_BareNumbersAreSeconds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "5")
	t.Setenv("TOKEN_SAFETY_MARGIN", "300")
	t.Setenv("LIGHT_TIMEOUT", "1.5")

	config, err := Load(NewFlagSet("test"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, config.Poll.Interval)
	assert.Equal(t, 5*time.Minute, config.Poll.SafetyMargin)
	assert.Equal(t, 1500*time.Millisecond, config.Light.Timeout)
}

func TestLoad_InvalidDurations(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{"garbage", "POLL_INTERVAL", "soon", "POLL_INTERVAL"},
		{"below minimum", "POLL_INTERVAL", "10ms", "POLL_INTERVAL must be at least"},
		{"fraction of a second below minimum", "POLL_INTERVAL", "0.01", "POLL_INTERVAL must be at least"},
		{"not a number", "AUTH_TIMEOUT", "NaN", "AUTH_TIMEOUT"},
		{"negative", "PRESENCE_TIMEOUT", "-5", "PRESENCE_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(NewFlagSet("test"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
	}{
		{5 * time.Second, 5 * time.Second},
		{30, 30 * time.Second},
		{int64(2), 2 * time.Second},
		{float64(0.5), 500 * time.Millisecond},
		{"45", 45 * time.Second},
		{" 1h ", time.Hour},
		{"250ms", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}

	_, err := parseDuration(true)
	assert.Error(t, err)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("USER_ID", "")

	_, err := Load(NewFlagSet("test"))
	assert.ErrorIs(t, err, ErrMissingRequired)
	assert.Contains(t, err.Error(), "USER_ID")
}

func TestLoad_Flags(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_FORMAT", "json")

	flags := NewFlagSet("test")
	require.NoError(t, flags.Parse([]string{"--log-format", "text", "--dry-run", "--log-level=warn"}))

	config, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "text", config.Logging.Format)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.True(t, config.Light.DryRun)
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	fileConfig := `{
		"pem_path": "/from/file.pem",
		"tenant_id": "file-tenant",
		"client_id": "file-client",
		"user_id": "file-user",
		"keylight_ip": "10.0.0.2",
		"poll_interval": 30,
		"active_activities": ["InACall", "Presenting"]
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(fileConfig), 0644))

	// Environment wins over the file
	t.Setenv("KEYLIGHT_IP", "10.0.0.9")

	flags := NewFlagSet("test")
	require.NoError(t, flags.Parse([]string{"--config", configPath}))

	config, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "/from/file.pem", config.Identity.PEMPath)
	assert.Equal(t, "file-tenant", config.Identity.TenantID)
	assert.Equal(t, "10.0.0.9", config.Light.Host)
	assert.Equal(t, 30*time.Second, config.Poll.Interval)
	assert.Equal(t, []string{"InACall", "Presenting"}, config.Presence.ActiveActivities)

	// Non-existent file
	flags = NewFlagSet("test")
	require.NoError(t, flags.Parse([]string{"--config", filepath.Join(tmpDir, "missing.json")}))
	_, err = Load(flags)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	// Invalid JSON
	invalidPath := filepath.Join(tmpDir, "invalid.json")
	require.NoError(t, os.WriteFile(invalidPath, []byte("invalid json"), 0644))
	flags = NewFlagSet("test")
	require.NoError(t, flags.Parse([]string{"--config", invalidPath}))
	_, err = Load(flags)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigFileNotFound)
}

func TestRead_DoesNotValidate(t *testing.T) {
	t.Setenv("PEM_PATH", "/only/the/pem.pem")
	for _, key := range []string{"TENANT_ID", "CLIENT_ID", "USER_ID", "KEYLIGHT_IP"} {
		t.Setenv(key, "")
	}

	config, err := Read(NewFlagSet("test"))
	require.NoError(t, err)
	assert.Equal(t, "/only/the/pem.pem", config.Identity.PEMPath)
	assert.Error(t, config.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a,b", " c "}))
	assert.Empty(t, splitList(nil))
	assert.Empty(t, splitList([]string{" , "}))
}
