// Package config loads an application's ezi.yaml: the application record,
// its main window and tray menu, and how the bridge is served.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ezi-bridge/codec"
	"ezi-bridge/ext/tray"
	"ezi-bridge/ext/windowm"
	"ezi-bridge/loadbalance"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "EZI"

type Application struct {
	Name           string `yaml:"name"`
	Package        string `yaml:"package"`
	Version        string `yaml:"version"`
	Description    string `yaml:"description"`
	Author         string `yaml:"author"`
	Icon           string `yaml:"icon"` // png only
	SingleInstance bool   `yaml:"singleInstance"`
	DevEntry       string `yaml:"devEntry"`
	BuildEntry     string `yaml:"buildEntry"`
}

type Bridge struct {
	Transport string        `yaml:"transport"` // tcp, ws, redis or memory
	Address   string        `yaml:"address"`
	Path      string        `yaml:"path"` // websocket endpoint path
	Advertise string        `yaml:"advertise"`
	Codec     string        `yaml:"codec"` // json or binary
	Balancer  string        `yaml:"balancer"`
	Timeout   time.Duration `yaml:"timeout"`   // per-request handler budget, 0 disables
	RateLimit float64       `yaml:"rateLimit"` // requests per second, 0 disables
	Burst     int           `yaml:"burst"`
	Retries   int           `yaml:"retries"` // host-side re-runs of handlers that timed out or were busy
	Heartbeat time.Duration `yaml:"heartbeat"`
	StatePath string        `yaml:"statePath"` // sqlite file for remembered window positions
	FSRoot    string        `yaml:"fsRoot"`

	Etcd  Etcd  `yaml:"etcd"`
	Redis Redis `yaml:"redis"`
}

type Etcd struct {
	Endpoints []string `yaml:"endpoints"`
	TTL       int64    `yaml:"ttl"` // lease seconds
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

type Config struct {
	Application Application     `yaml:"application"`
	Window      windowm.Options `yaml:"window"`
	Tray        []tray.MenuItem `yaml:"tray"`
	Bridge      Bridge          `yaml:"bridge"`
}

func Default() *Config {
	return &Config{
		Application: Application{
			Name:        "EziApplication",
			Package:     "com.ezi.app",
			Version:     "0.0.0",
			Description: "A Ezi Application",
			Author:      "Ezi",
			Icon:        "icon.png",
			DevEntry:    "http://localhost:5173/",
			BuildEntry:  "dist",
		},
		Window: windowm.DefaultOptions(),
		Bridge: Bridge{
			Transport: "tcp",
			Address:   "127.0.0.1:7410",
			Path:      "/ipc",
			Codec:     "json",
			Balancer:  "round-robin",
			Timeout:   30 * time.Second,
			Burst:     100,
			Heartbeat: 15 * time.Second,
			Etcd:      Etcd{TTL: 10},
			Redis:     Redis{Group: "ezi-host"},
		},
	}
}

// Load reads path over the defaults, applies EZI_* environment overrides
// and validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func env(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + "_" + name)
	return v, v != ""
}

func (c *Config) applyEnv() error {
	if v, ok := env("BRIDGE_TRANSPORT"); ok {
		c.Bridge.Transport = v
	}
	if v, ok := env("BRIDGE_ADDRESS"); ok {
		c.Bridge.Address = v
	}
	if v, ok := env("BRIDGE_CODEC"); ok {
		c.Bridge.Codec = v
	}
	if v, ok := env("BRIDGE_RATE_LIMIT"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "%s_BRIDGE_RATE_LIMIT", EnvPrefix)
		}
		c.Bridge.RateLimit = rate
	}
	if v, ok := env("ETCD_ENDPOINTS"); ok {
		c.Bridge.Etcd.Endpoints = strings.Split(v, ",")
	}
	if v, ok := env("REDIS_ADDR"); ok {
		c.Bridge.Redis.Addr = v
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Application.Name == "" {
		return errors.New("application.name is required")
	}
	if c.Application.Package == "" {
		return errors.New("application.package is required")
	}
	if err := c.Window.Validate(); err != nil {
		return errors.Wrap(err, "window")
	}
	if err := validateMenu(c.Tray); err != nil {
		return errors.Wrap(err, "tray")
	}

	b := c.Bridge
	switch b.Transport {
	case "tcp", "ws", "memory":
	case "redis":
		if b.Redis.Addr == "" {
			return errors.New("bridge.redis.addr is required for the redis transport")
		}
	default:
		return errors.Errorf("bridge.transport: unknown transport %q", b.Transport)
	}
	if b.Transport != "memory" && b.Transport != "redis" && b.Address == "" {
		return errors.New("bridge.address is required")
	}
	if _, err := codec.ByName(b.Codec); err != nil {
		return errors.Wrap(err, "bridge.codec")
	}
	if _, err := loadbalance.ByName(b.Balancer); err != nil {
		return errors.Wrap(err, "bridge.balancer")
	}
	if b.Timeout < 0 || b.Heartbeat < 0 {
		return errors.New("bridge durations must not be negative")
	}
	if b.RateLimit < 0 {
		return errors.New("bridge.rateLimit must not be negative")
	}
	if b.Retries < 0 {
		return errors.New("bridge.retries must not be negative")
	}
	if b.RateLimit > 0 && b.Burst <= 0 {
		return errors.New("bridge.burst must be positive when rateLimit is set")
	}
	return nil
}

func validateMenu(items []tray.MenuItem) error {
	for _, item := range items {
		switch item.Type {
		case tray.Normal, tray.Separator:
		case tray.Submenu:
			if err := validateMenu(item.Submenu); err != nil {
				return errors.Wrapf(err, "submenu %q", item.Label)
			}
		default:
			return errors.Errorf("menu item %q: unknown type %q", item.Label, item.Type)
		}
	}
	return nil
}
