package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/client"
	"ezi-bridge/codec"
	"ezi-bridge/config"
	"ezi-bridge/ext/tray"
	"ezi-bridge/ext/version"
	"ezi-bridge/ext/windowm"
	"ezi-bridge/hostsim"
	"ezi-bridge/middleware"
	"ezi-bridge/registry"
	"ezi-bridge/server"
	"ezi-bridge/transport"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run a headless host answering front-end calls",
	Long: `Run a headless host. It opens the configured main window and tray
menu in memory and answers the windowm, tray, terminal, version and
filesystem namespaces until interrupted.

With bridge.etcd.endpoints set, the endpoint is advertised under the
application name so "ezi call --discover" can find it.`,
	Args: cobra.NoArgs,
	RunE: runHost,
}

func init() {
	hostCmd.Flags().Duration("shutdown-timeout", 5*time.Second, "How long to wait for in-flight calls on exit")
	hostCmd.Flags().String("state", "", "SQLite file for remembered window positions (overrides bridge.statePath)")
	hostCmd.Flags().String("fs-root", "", "Directory served by the filesystem namespace (overrides bridge.fsRoot)")
	rootCmd.AddCommand(hostCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("state"); v != "" {
		cfg.Bridge.StatePath = v
	}
	if v, _ := cmd.Flags().GetString("fs-root"); v != "" {
		cfg.Bridge.FSRoot = v
	}
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Logger.With().Str("app", cfg.Application.Name).Logger()
	host, closeHost, err := buildHost(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHost()

	svr, err := buildServer(cfg, host, logger)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, svr, logger, shutdownTimeout)
}

// buildHost creates the simulated host with its main window and tray menu.
func buildHost(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*hostsim.Host, func(), error) {
	opts := []hostsim.Option{
		hostsim.WithLogger(logger),
		hostsim.WithVersionInfo(buildInfo()),
	}
	var closers []func() error
	if cfg.Bridge.StatePath != "" {
		store, err := hostsim.NewSQLitePositions(cfg.Bridge.StatePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		opts = append(opts, hostsim.WithPositionStore(store))
	}
	if cfg.Bridge.FSRoot != "" {
		opts = append(opts, hostsim.WithFilesystemRoot(cfg.Bridge.FSRoot))
	}

	host, err := hostsim.New(opts...)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, nil, err
	}
	closers = append(closers, host.Close)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Msg("close failed")
			}
		}
	}

	mainWin, err := host.Windows.Open(ctx, cfg.Window)
	if err != nil {
		closeAll()
		return nil, nil, errors.Wrap(err, "open main window")
	}
	if len(cfg.Tray) > 0 {
		menu := append([]tray.MenuItem(nil), cfg.Tray...)
		tray.AssignIDs(menu, tray.FirstItemID)
		var ok string
		if err := host.Tray.SetContextMenu(ctx, &hostsim.TrayArgs{MenuItems: menu}, &ok); err != nil {
			closeAll()
			return nil, nil, err
		}
		if err := host.Tray.Show(ctx, &hostsim.TrayArgs{MainWindowID: mainWin.ID}, &ok); err != nil {
			closeAll()
			return nil, nil, err
		}
	}
	logger.Info().Int("winId", mainWin.ID).Str("title", mainWin.Title).Msg("main window open")
	return host, closeAll, nil
}

func buildServer(cfg *config.Config, host *hostsim.Host, logger zerolog.Logger) (*server.Server, error) {
	c, err := codec.ByName(cfg.Bridge.Codec)
	if err != nil {
		return nil, err
	}
	svr := server.NewServer(
		server.WithCodec(c),
		server.WithLogger(logger),
		server.WithHeartbeat(cfg.Bridge.Heartbeat),
	)
	svr.Use(middleware.Logging(logger))
	if cfg.Bridge.RateLimit > 0 {
		svr.Use(middleware.RateLimit(cfg.Bridge.RateLimit, cfg.Bridge.Burst))
	}
	if cfg.Bridge.Retries > 0 {
		svr.Use(middleware.Retry(logger, cfg.Bridge.Retries, 50*time.Millisecond))
	}
	if cfg.Bridge.Timeout > 0 {
		svr.Use(middleware.Timeout(cfg.Bridge.Timeout))
	}
	if err := host.Register(svr); err != nil {
		return nil, err
	}
	return svr, nil
}

// serve runs the configured transport until ctx ends, then shuts down.
func serve(ctx context.Context, cfg *config.Config, svr *server.Server, logger zerolog.Logger, shutdownTimeout time.Duration) error {
	eg, ctx := errgroup.WithContext(ctx)
	b := cfg.Bridge
	release := func() {}

	switch b.Transport {
	case "tcp":
		l, err := net.Listen("tcp", b.Address)
		if err != nil {
			return errors.Wrapf(err, "listen %s", b.Address)
		}
		logger.Info().Str("addr", l.Addr().String()).Msg("serving tcp frames")
		eg.Go(func() error { return svr.ServeListener(l) })
		if release, err = advertise(ctx, cfg, svr, "tcp", l.Addr().String()); err != nil {
			_ = l.Close()
			return err
		}

	case "ws":
		l, err := net.Listen("tcp", b.Address)
		if err != nil {
			return errors.Wrapf(err, "listen %s", b.Address)
		}
		mux := http.NewServeMux()
		mux.Handle(b.Path, svr.WebSocketHandler())
		httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info().Str("addr", l.Addr().String()).Str("path", b.Path).Msg("serving websocket")
		eg.Go(func() error {
			if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
		if release, err = advertise(ctx, cfg, svr, "ws", l.Addr().String()); err != nil {
			_ = httpSrv.Close()
			return err
		}

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: b.Redis.Addr})
		defer rdb.Close()
		consumer := b.Redis.Consumer
		if consumer == "" {
			consumer = "host-" + uuid.NewString()
		}
		pub, sub, err := transport.NewRedisPubSub(rdb, b.Redis.Group, consumer, logger)
		if err != nil {
			return err
		}
		defer sub.Close()
		defer pub.Close()
		requests, responses := transport.Topics(cfg.Application.Name)
		h := transport.NewPubSubHost(pub, sub, responses, requests, logger)
		defer h.Close()
		logger.Info().Str("redis", b.Redis.Addr).Str("topic", requests).Msg("serving redis streams")
		eg.Go(func() error { return svr.ServeHost(ctx, h) })

	case "memory":
		front, back := transport.Pipe()
		defer front.Close()
		eg.Go(func() error { return svr.ServeHost(ctx, back) })
		eg.Go(func() error { return selfCheck(ctx, front, cfg, logger) })
	}

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		defer release()
		return svr.Shutdown(shutdownTimeout)
	})
	return eg.Wait()
}

// advertise registers the endpoint in etcd when endpoints are configured.
// The returned release closes the registry client after Shutdown has
// deregistered.
func advertise(ctx context.Context, cfg *config.Config, svr *server.Server, scheme, addr string) (release func(), err error) {
	b := cfg.Bridge
	if len(b.Etcd.Endpoints) == 0 {
		return func() {}, nil
	}
	reg, err := registry.NewEtcdRegistry(b.Etcd.Endpoints)
	if err != nil {
		return nil, err
	}
	if b.Advertise != "" {
		addr = b.Advertise
	}
	inst := registry.HostInstance{
		ID:      uuid.NewString(),
		Addr:    addr,
		Scheme:  scheme,
		Version: eziVersion,
	}
	if scheme == "ws" {
		inst.Path = b.Path
	}
	if err := svr.Advertise(ctx, reg, cfg.Application.Name, inst, b.Etcd.TTL); err != nil {
		_ = reg.Close()
		return nil, err
	}
	return func() { _ = reg.Close() }, nil
}

// selfCheck drives the in-memory host through a front-end once and logs
// what it saw.
func selfCheck(ctx context.Context, front channel.Host, cfg *config.Config, logger zerolog.Logger) error {
	c, err := codec.ByName(cfg.Bridge.Codec)
	if err != nil {
		return err
	}
	ch, err := channel.New(channel.NewSlot(front), channel.WithCodec(c), channel.WithLogger(logger))
	if err != nil {
		return err
	}
	cl := client.New(ch, client.WithLogger(logger))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	w, err := windowm.New(cl, nil).GetCurrentWindow(ctx)
	if err != nil {
		return errors.Wrap(err, "self check")
	}
	info, err := version.Fetch(ctx, cl)
	if err != nil {
		return errors.Wrap(err, "self check")
	}
	logger.Info().Int("winId", w.ID).Str("title", w.Title).Str("version", info.EziVersion).Msg("self check passed")
	return nil
}
