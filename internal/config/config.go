// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
		// BaseURL es la URL pública del servicio, usada para construir
		// submit/allow/deny URLs absolutas.
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string        `yaml:"cookie_name"`
		TTL        time.Duration `yaml:"ttl"`
		Secure     bool          `yaml:"secure"`
	} `yaml:"session"`

	Template struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"template"`

	Messaging struct {
		// http | smtp
		Driver  string        `yaml:"driver"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		SMTP    struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
			User string `yaml:"user"`
			Pass string `yaml:"pass"`
		} `yaml:"smtp"`
	} `yaml:"messaging"`

	Rate struct {
		// Enabled solo tiene efecto con cache redis.
		Enabled     bool          `yaml:"enabled"`
		MaxRequests int           `yaml:"max_requests"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"rate"`

	Identity struct {
		// Resolver externo de identidades ya autenticadas (checkpoint-style).
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"identity"`

	Stores struct {
		// OverridesFile apunta al YAML de overrides por entorno
		// (ver overrides.go). Opcional.
		OverridesFile string `yaml:"overrides_file"`
	} `yaml:"stores"`
}

// Load lee el YAML (opcional) y aplica overrides de entorno.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.App.Env, "VANILLA_ENV")
	setStr(&c.App.LogLevel, "VANILLA_LOG_LEVEL")
	setStr(&c.Server.Addr, "VANILLA_ADDR")
	setStr(&c.Server.MetricsAddr, "VANILLA_METRICS_ADDR")
	setStr(&c.Server.BaseURL, "VANILLA_BASE_URL")
	setStr(&c.Storage.Driver, "VANILLA_STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "VANILLA_PG_DSN")
	setStr(&c.Cache.Kind, "VANILLA_CACHE_KIND")
	setStr(&c.Cache.Redis.Addr, "VANILLA_REDIS_ADDR")
	setStr(&c.Cache.Redis.Password, "VANILLA_REDIS_PASSWORD")
	setInt(&c.Cache.Redis.DB, "VANILLA_REDIS_DB")
	setStr(&c.Messaging.BaseURL, "VANILLA_MESSAGING_URL")
	setStr(&c.Messaging.Driver, "VANILLA_MESSAGING_DRIVER")
	setStr(&c.Identity.BaseURL, "VANILLA_IDENTITY_URL")
	setStr(&c.Stores.OverridesFile, "VANILLA_STORE_OVERRIDES")
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "vanilla.session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}
	if c.Template.Timeout == 0 {
		c.Template.Timeout = 10 * time.Second
	}
	if c.Messaging.Timeout == 0 {
		c.Messaging.Timeout = 10 * time.Second
	}
	if c.Messaging.Driver == "" {
		c.Messaging.Driver = "http"
	}
	if c.Identity.Timeout == 0 {
		c.Identity.Timeout = 5 * time.Second
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 10
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
