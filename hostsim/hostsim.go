// Package hostsim is a headless host: it answers every front-end namespace
// (windowm, tray, terminal, version, filesystem) from memory, so the bridge
// can be run and tested without a real window system.
package hostsim

import (
	"os"

	"ezi-bridge/ext/filesystem"
	"ezi-bridge/ext/terminal"
	"ezi-bridge/ext/tray"
	"ezi-bridge/ext/version"
	"ezi-bridge/ext/windowm"
	"ezi-bridge/server"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Host struct {
	Windows    *Windows
	Tray       *Tray
	Terminal   *Terminal
	Version    *Version
	Filesystem *Filesystem

	events *eventBus
}

type config struct {
	logger    zerolog.Logger
	screen    windowm.Size
	positions PositionStore
	info      version.Info
	fsRoot    string
}

type Option func(*config)

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithScreen sets the screen windows are centered on. Default 1920x1080.
func WithScreen(s windowm.Size) Option {
	return func(c *config) {
		c.screen = s
	}
}

func WithPositionStore(s PositionStore) Option {
	return func(c *config) {
		c.positions = s
	}
}

func WithVersionInfo(info version.Info) Option {
	return func(c *config) {
		c.info = info
	}
}

// WithFilesystemRoot confines the filesystem namespace to dir. Without it
// the namespace is not served.
func WithFilesystemRoot(dir string) Option {
	return func(c *config) {
		c.fsRoot = dir
	}
}

func New(opts ...Option) (*Host, error) {
	cfg := config{
		logger: log.Logger,
		screen: windowm.Size{Width: 1920, Height: 1080},
		info: version.Info{
			EziVersion: "0.0.0",
			BuildType:  version.Debug,
			Platform:   version.Linux,
			OSVersion:  "0.0.0",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	windows := NewWindows(cfg.logger, cfg.screen, cfg.positions)
	h := &Host{
		Windows:  windows,
		Tray:     &Tray{windows: windows, events: windows.events},
		Terminal: &Terminal{logger: cfg.logger.With().Str("component", "terminal").Logger()},
		Version:  &Version{info: cfg.info},
		events:   windows.events,
	}
	if cfg.fsRoot != "" {
		root, err := os.OpenRoot(cfg.fsRoot)
		if err != nil {
			return nil, errors.Wrapf(err, "open filesystem root %s", cfg.fsRoot)
		}
		h.Filesystem = &Filesystem{root: root}
	}
	return h, nil
}

// Register exposes every namespace of h on svr. Host events go to the
// front-ends attached to svr from then on.
func (h *Host) Register(svr *server.Server) error {
	h.events.set(svr)

	services := []struct {
		ns   string
		rcvr any
	}{
		{windowm.Namespace, h.Windows},
		{tray.Namespace, h.Tray},
		{terminal.Namespace, h.Terminal},
		{version.Namespace, h.Version},
	}
	if h.Filesystem != nil {
		services = append(services, struct {
			ns   string
			rcvr any
		}{filesystem.Namespace, h.Filesystem})
	}
	for _, s := range services {
		if err := svr.Register(s.ns, s.rcvr); err != nil {
			return errors.Wrapf(err, "register %s", s.ns)
		}
	}
	return nil
}

func (h *Host) Close() error {
	if h.Filesystem != nil {
		return h.Filesystem.root.Close()
	}
	return nil
}
