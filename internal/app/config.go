package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/qssage/internal/assessor"
	"github.com/raysh454/qssage/internal/navigation"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/webclient"
	"github.com/raysh454/qssage/internal/whitelist"
)

// ServerConfig is read by the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	AllowOrigin string `yaml:"allow_origin" json:"allow_origin"`

	// ScanRate is the sustained /scan rate per client IP; ScanBurst its bucket.
	ScanRate  float64 `yaml:"scan_rate" json:"scan_rate"`
	ScanBurst int     `yaml:"scan_burst" json:"scan_burst"`

	BackupDir string `yaml:"backup_dir" json:"backup_dir"`
}

// ScanConfig bounds one scan.
type ScanConfig struct {
	// NavTimeout bounds the single navigation attempt.
	NavTimeout time.Duration `yaml:"nav_timeout" json:"nav_timeout"`
	// Budget bounds navigation, settle and extraction together.
	Budget time.Duration `yaml:"budget" json:"budget"`
	// SideEffectTimeout bounds the background report insert and webhook.
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout" json:"side_effect_timeout"`

	EvalMinLength int    `yaml:"eval_min_length" json:"eval_min_length"`
	Binding       string `yaml:"binding" json:"binding"`

	// AutoReport files a report for every non-SAFE verdict.
	AutoReport bool `yaml:"auto_report" json:"auto_report"`
}

type WhitelistConfig struct {
	Trusted    []string `yaml:"trusted" json:"trusted"`
	Shorteners []string `yaml:"shorteners" json:"shorteners"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Config aggregates every package's settings.
type Config struct {
	Server     ServerConfig      `yaml:"server" json:"server"`
	Scan       ScanConfig        `yaml:"scan" json:"scan"`
	Navigation navigation.Config `yaml:"navigation" json:"navigation"`
	WebClient  webclient.Config  `yaml:"webclient" json:"webclient"`
	Assessor   assessor.Config   `yaml:"assessor" json:"assessor"`
	Store      store.Config      `yaml:"store" json:"store"`
	Notify     notify.Config     `yaml:"notify" json:"notify"`
	Whitelist  WhitelistConfig   `yaml:"whitelist" json:"whitelist"`
	Log        LogConfig         `yaml:"log" json:"log"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":4000",
			AllowOrigin: "*",
			ScanRate:    1,
			ScanBurst:   5,
			BackupDir:   "./backup",
		},
		Scan: ScanConfig{
			NavTimeout:        10 * time.Second,
			Budget:            60 * time.Second,
			SideEffectTimeout: 5 * time.Second,
			AutoReport:        true,
		},
		Navigation: navigation.DefaultConfig(),
		WebClient:  webclient.DefaultConfig(),
		Assessor:   assessor.DefaultConfig(),
		Store:      store.Config{Path: "./data/qssage.db"},
		Notify:     notify.DefaultConfig(),
		Whitelist: WhitelistConfig{
			Trusted:    append([]string(nil), whitelist.DefaultTrusted...),
			Shorteners: append([]string(nil), whitelist.DefaultShorteners...),
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (when
// path is non-empty) and then the process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. Unprefixed names are the ones the
// original deployment used.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = d
		return nil
	}
	list := func(dst *[]string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("env PORT: %w", err)
		}
		c.Server.Addr = ":" + v
	}
	str(&c.Server.Addr, "QSSAGE_ADDR")
	str(&c.Server.AllowOrigin, "QSSAGE_ALLOW_ORIGIN", "ALLOW_ORIGIN")
	str(&c.Server.BackupDir, "QSSAGE_BACKUP_DIR")
	str(&c.Store.Path, "QSSAGE_DB_PATH")
	str(&c.WebClient.Backend, "QSSAGE_BROWSER_BACKEND")
	str(&c.WebClient.ExecPath, "QSSAGE_CHROME_PATH")
	str(&c.Notify.WebhookURL, "QSSAGE_WEBHOOK_URL", "WEBHOOK_URL")
	str(&c.Notify.Username, "QSSAGE_ADMIN_EMAIL", "ADMIN_EMAIL")
	str(&c.Notify.Password, "QSSAGE_ADMIN_PASS", "ADMIN_PASS")
	str(&c.Notify.SMTPHost, "QSSAGE_SMTP_HOST")
	str(&c.Log.Level, "QSSAGE_LOG_LEVEL")
	list(&c.Notify.To, "QSSAGE_MAIL_TO")
	list(&c.Whitelist.Trusted, "QSSAGE_TRUSTED_HOSTS")

	for key, dst := range map[string]*time.Duration{
		"QSSAGE_NAV_TIMEOUT":   &c.Scan.NavTimeout,
		"QSSAGE_SCAN_BUDGET":   &c.Scan.Budget,
		"QSSAGE_QUIET_WINDOW":  &c.Navigation.QuietWindow,
		"QSSAGE_HARD_CEILING":  &c.Navigation.HardCeiling,
		"QSSAGE_GRACE_PERIOD":  &c.Navigation.GracePeriod,
		"QSSAGE_POLL_INTERVAL": &c.Navigation.PollInterval,
	} {
		if err := dur(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.NavTimeout <= 0 {
		errs = append(errs, errors.New("scan.nav_timeout must be positive"))
	}
	if c.Scan.Budget < c.Scan.NavTimeout {
		errs = append(errs, errors.New("scan.budget must be at least scan.nav_timeout"))
	}
	if c.Server.ScanRate < 0 || c.Server.ScanBurst < 0 {
		errs = append(errs, errors.New("server.scan_rate and server.scan_burst must not be negative"))
	}
	if err := c.Assessor.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
