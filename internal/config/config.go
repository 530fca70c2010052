// Package config loads service settings from defaults, an optional config
// file and TLEPROP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/tleprop/internal/api"
	"github.com/star/tleprop/internal/auth"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/sgp4"
	"github.com/star/tleprop/internal/stream"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TLEPROP_HTTP_ADDR for http.addr.
const EnvPrefix = "TLEPROP"

type HTTP struct {
	Addr       string `mapstructure:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
}

type Auth struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type Rate struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type Prop struct {
	Workers      int           `mapstructure:"workers"`
	Gravity      string        `mapstructure:"gravity"`
	OpsMode      string        `mapstructure:"opsmode"`
	Frame        string        `mapstructure:"frame"`
	Step         time.Duration `mapstructure:"step"`
	Horizon      time.Duration `mapstructure:"horizon"`
	MaxPositions int           `mapstructure:"max_positions"`
}

type TLE struct {
	FetchEnabled  bool          `mapstructure:"fetch_enabled"`
	SourceURL     string        `mapstructure:"source_url"`
	ExtraURLs     []string      `mapstructure:"extra_urls"`
	FetchInterval time.Duration `mapstructure:"fetch_interval"`
	File          string        `mapstructure:"file"`
}

type Stream struct {
	MaxPerIP       int           `mapstructure:"max_per_ip"`
	Interval       time.Duration `mapstructure:"interval"`
	Keepalive      time.Duration `mapstructure:"keepalive"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Config is the full service configuration.
type Config struct {
	HTTP   HTTP   `mapstructure:"http"`
	Auth   Auth   `mapstructure:"auth"`
	Rate   Rate   `mapstructure:"rate"`
	Prop   Prop   `mapstructure:"prop"`
	TLE    TLE    `mapstructure:"tle"`
	Stream Stream `mapstructure:"stream"`
}

// New returns a viper instance with defaults and environment binding set
// up. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("rate.per_second", 20.0)
	v.SetDefault("rate.burst", 40)
	v.SetDefault("prop.workers", runtime.NumCPU())
	v.SetDefault("prop.gravity", "wgs72")
	v.SetDefault("prop.opsmode", "improved")
	v.SetDefault("prop.frame", "teme")
	v.SetDefault("prop.step", 5*time.Second)
	v.SetDefault("prop.horizon", 10*time.Minute)
	v.SetDefault("prop.max_positions", 100_000)
	v.SetDefault("tle.fetch_enabled", true)
	v.SetDefault("tle.source_url", "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle")
	v.SetDefault("tle.extra_urls", []string{})
	v.SetDefault("tle.fetch_interval", 6*time.Hour)
	v.SetDefault("tle.file", "")
	v.SetDefault("stream.max_per_ip", 10)
	v.SetDefault("stream.interval", time.Second)
	v.SetDefault("stream.keepalive", 30*time.Second)
	v.SetDefault("stream.allowed_origins", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file, decodes and validates.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	// TLEPROP_TLE_EXTRA_URLS is split on commas; drop the padding.
	for i, u := range cfg.TLE.ExtraURLs {
		cfg.TLE.ExtraURLs[i] = strings.TrimSpace(u)
	}
	for i, o := range cfg.Stream.AllowedOrigins {
		cfg.Stream.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and names the offending key.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, key, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
		}
	}

	check(c.HTTP.Addr != "", "http.addr", "must not be empty")
	check(!c.Auth.Enabled || c.Auth.Token != "", "auth.token", "required when auth.enabled is true")
	check(c.Rate.PerSecond >= 0, "rate.per_second", "must be >= 0, got %g", c.Rate.PerSecond)
	check(c.Rate.PerSecond == 0 || c.Rate.Burst >= 1, "rate.burst", "must be >= 1, got %d", c.Rate.Burst)

	check(c.Prop.Workers >= 1, "prop.workers", "must be >= 1, got %d", c.Prop.Workers)
	if _, err := sgp4.GravityByName(c.Prop.Gravity); err != nil {
		check(false, "prop.gravity", "%v", err)
	}
	if _, err := sgp4.ParseOpsMode(c.Prop.OpsMode); err != nil {
		check(false, "prop.opsmode", "%v", err)
	}
	if _, err := propagation.ParseFrame(c.Prop.Frame); err != nil {
		check(false, "prop.frame", "%v", err)
	}
	check(c.Prop.Step > 0, "prop.step", "must be positive, got %s", c.Prop.Step)
	check(c.Prop.Horizon >= c.Prop.Step, "prop.horizon", "must be >= prop.step, got %s", c.Prop.Horizon)
	check(c.Prop.MaxPositions >= 1, "prop.max_positions", "must be >= 1, got %d", c.Prop.MaxPositions)

	if c.TLE.FetchEnabled {
		check(validURL(c.TLE.SourceURL), "tle.source_url", "must be an http(s) URL, got %q", c.TLE.SourceURL)
		check(c.TLE.FetchInterval >= time.Minute, "tle.fetch_interval", "must be >= 1m, got %s", c.TLE.FetchInterval)
		for _, u := range c.TLE.ExtraURLs {
			check(validURL(u), "tle.extra_urls", "must be http(s) URLs, got %q", u)
		}
	}

	check(c.Stream.MaxPerIP >= 1, "stream.max_per_ip", "must be >= 1, got %d", c.Stream.MaxPerIP)
	check(c.Stream.Interval >= 100*time.Millisecond, "stream.interval", "must be >= 100ms, got %s", c.Stream.Interval)
	check(c.Stream.Keepalive >= time.Second, "stream.keepalive", "must be >= 1s, got %s", c.Stream.Keepalive)
	for _, o := range c.Stream.AllowedOrigins {
		check(o == "*" || validOrigin(o), "stream.allowed_origins", "must be \"*\" or scheme://host[:port], got %q", o)
	}

	return errors.Join(errs...)
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validOrigin(s string) bool {
	u, err := url.Parse(strings.TrimSuffix(s, "/"))
	return err == nil && u.Scheme != "" && u.Host != "" && u.Path == "" && u.RawQuery == ""
}

// SGP4 returns the propagator model settings.
func (c Config) SGP4() sgp4.Config {
	g, _ := sgp4.GravityByName(c.Prop.Gravity)
	m, _ := sgp4.ParseOpsMode(c.Prop.OpsMode)
	return sgp4.Config{Gravity: g, Mode: m}
}

// Propagation returns the batch propagation settings.
func (c Config) Propagation() propagation.PropConfig {
	frame, _ := propagation.ParseFrame(c.Prop.Frame)
	return propagation.PropConfig{
		Workers: c.Prop.Workers,
		Step:    c.Prop.Step,
		Horizon: c.Prop.Horizon,
		Frame:   frame,
		SGP4:    c.SGP4(),
	}
}

// API returns the HTTP layer settings.
func (c Config) API() api.Config {
	return api.Config{
		Addr:         c.HTTP.Addr,
		TrustProxy:   c.HTTP.TrustProxy,
		Auth:         auth.Config{Enabled: c.Auth.Enabled, Token: c.Auth.Token},
		RatePerSec:   c.Rate.PerSecond,
		RateBurst:    c.Rate.Burst,
		MaxPositions: c.Prop.MaxPositions,
	}
}

// StreamConfig returns the websocket stream settings.
func (c Config) StreamConfig() stream.Config {
	return stream.Config{
		MaxConcurrentPerIP: c.Stream.MaxPerIP,
		Interval:           c.Stream.Interval,
		KeepaliveInterval:  c.Stream.Keepalive,
		TrustProxy:         c.HTTP.TrustProxy,
		AllowedOrigins:     c.Stream.AllowedOrigins,
	}
}
