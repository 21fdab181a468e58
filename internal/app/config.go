package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/scan"
	"github.com/raysh454/secboard/internal/scanapi"
	"github.com/raysh454/secboard/internal/webclient"
)

// Config contains the runtime options shared by the CLI and the server.
type Config struct {
	API       scanapi.Config
	WebClient webclient.Config
	Scan      scan.Config

	// CachePath is the SQLite file holding one cached result per domain.
	// Empty keeps results in memory only.
	CachePath string

	// ListenAddr is the dashboard API listen address.
	ListenAddr string

	Auth        identity.VerifierConfig
	AuthKeyFile string

	Log logging.Config
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		API: scanapi.Config{
			BaseURL:       scanapi.DefaultBaseURL,
			RatePerSecond: 5,
			Burst:         2,
		},
		WebClient: webclient.Config{
			Timeout:      webclient.DefaultTimeout,
			MaxBodyBytes: webclient.DefaultMaxBodyBytes,
			UserAgent:    webclient.DefaultUserAgent,
		},
		Scan:       scan.DefaultConfig(),
		CachePath:  "~/.secboard/cache.db",
		ListenAddr: ":8080",
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// SetDefaults registers DefaultConfig under the keys LoadConfig reads.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.rate_per_second", d.API.RatePerSecond)
	v.SetDefault("api.burst", d.API.Burst)
	v.SetDefault("api.timeout", d.WebClient.Timeout)
	v.SetDefault("scan.poll_interval", d.Scan.PollInterval)
	v.SetDefault("scan.max_retries", d.Scan.MaxRetries)
	v.SetDefault("cache.path", d.CachePath)
	v.SetDefault("server.listen_addr", d.ListenAddr)
	v.SetDefault("auth.hmac_secret", "")
	v.SetDefault("auth.rsa_public_key_file", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
}

// BindEnv makes every key overridable through SECBOARD_* variables,
// e.g. SECBOARD_API_BASE_URL.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SECBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadConfig builds a Config from v. Keys missing from v keep their defaults.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, nil
	}

	if s := v.GetString("api.base_url"); s != "" {
		cfg.API.BaseURL = s
	}
	if v.IsSet("api.rate_per_second") {
		cfg.API.RatePerSecond = v.GetFloat64("api.rate_per_second")
	}
	if v.IsSet("api.burst") {
		cfg.API.Burst = v.GetInt("api.burst")
	}
	if d := v.GetDuration("api.timeout"); d > 0 {
		cfg.WebClient.Timeout = d
	}
	if d := v.GetDuration("scan.poll_interval"); d > 0 {
		cfg.Scan.PollInterval = d
	}
	if n := v.GetInt("scan.max_retries"); n > 0 {
		cfg.Scan.MaxRetries = n
	}
	if v.IsSet("cache.path") {
		cfg.CachePath = v.GetString("cache.path")
	}
	if s := v.GetString("server.listen_addr"); s != "" {
		cfg.ListenAddr = s
	}

	cfg.Auth = identity.VerifierConfig{
		HMACSecret: v.GetString("auth.hmac_secret"),
		Issuer:     v.GetString("auth.issuer"),
		Audience:   v.GetString("auth.audience"),
	}
	cfg.AuthKeyFile = v.GetString("auth.rsa_public_key_file")

	if s := v.GetString("log.level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("log.format"); s != "" {
		cfg.Log.Format = s
	}
	cfg.Log.File = v.GetString("log.file")

	path, err := expandPath(cfg.CachePath)
	if err != nil {
		return nil, err
	}
	cfg.CachePath = path
	return cfg, nil
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
