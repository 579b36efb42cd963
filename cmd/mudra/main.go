package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/logs"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/process"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

var version = "v0.1.0" // injected by -ldflags during build

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:           "mudra",
		Short:         "Mudra - hand gesture recognition front-end",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.BindFlags(v, cmd.Root().PersistentFlags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newConfigCmd(v), newSendCmd(v))
	return rootCmd
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	logger, err := logs.Setup(cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting mudra",
		zap.String("version", version),
		zap.String("data_dir", cfg.DataDir),
		zap.String("recognizer", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))),
		zap.Bool("tray", cfg.Tray))

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	m := metrics.New()

	supervisor := process.NewSupervisor(logger)
	supervisor.AddSearchDir(cfg.ScriptsDir())

	connector := connection.NewConnector(connection.Config{
		ConnectDelay: cfg.ConnectDelay,
		DialTimeout:  cfg.DialTimeout,
	}, nil, logger)
	connector.OnAttempt = func(_ int, err error) { m.ConnectAttempt(err) }

	coord := lifecycle.New(lifecycle.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		MaxAttempts: cfg.MaxAttempts,
		StopTimeout: cfg.StopTimeout,
	},
		lifecycle.SupervisorLauncher(supervisor, cfg.Executable, cfg.Script),
		connector,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(m),
	)

	application := app.New(app.Config{
		Coordinator: coord,
		Store:       st,
		Notifier:    notify.New(cfg.Notifications, logger),
		Logger:      logger,
	})
	if err := application.LoadGestures(); err != nil {
		logger.Warn("Failed to load gestures, using defaults", zap.Error(err))
	}
	application.Run()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	var srv *server.Server
	if cfg.Listen != "" {
		webDir := findWebDir(cfg.DataDir)
		if webDir != "" {
			logger.Info("Serving static files", zap.String("dir", webDir))
		}
		srv = server.New(server.Config{
			StaticDir: webDir,
			Service:   application,
			Events:    coord,
			Metrics:   m.Handler(),
			Logger:    logger,
		})
		go func() {
			serveErr <- srv.ListenAndServe(cfg.Listen)
		}()
	}

	if cfg.Tray {
		err = runTray(ctx, stop, application, dashboardURL(cfg.Listen), serveErr, logger)
	} else {
		err = wait(ctx, serveErr)
	}

	logger.Info("Shutting down")
	application.Close()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("HTTP server shutdown failed", zap.Error(serr))
		}
	}
	return err
}

// runTray runs the tray on the calling goroutine until ctx ends, Quit is
// clicked or the HTTP server fails.
func runTray(ctx context.Context, quit context.CancelFunc, a *app.App, url string, serveErr <-chan error, logger *zap.Logger) error {
	t := tray.New()
	t.OnToggle(func() {
		if err := a.Toggle(); err != nil {
			logger.Warn("Failed to toggle recognition", zap.Error(err))
		}
	})
	t.OnCalibrate(func() {
		if err := a.StartCalibration(); err != nil {
			logger.Warn("Failed to start calibration", zap.Error(err))
		}
	})
	t.OnDashboard(func() {
		if url == "" {
			logger.Warn("Dashboard unavailable, HTTP API is disabled")
			return
		}
		if err := tray.OpenURL(url); err != nil {
			logger.Warn("Failed to open dashboard", zap.String("url", url), zap.Error(err))
		}
	})
	t.SetNotifications(a.Notifications())
	t.OnNotifications(func() bool {
		a.SetNotifications(!a.Notifications())
		return a.Notifications()
	})
	t.OnQuit(quit)
	a.OnUpdate(func(u app.Update) {
		t.SetState(u.State)
		t.SetLastGesture(u.LastGesture)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- wait(ctx, serveErr)
		t.Quit()
	}()

	t.Run()
	quit()
	return <-errCh
}

// wait blocks until ctx is done or the HTTP server stops.
func wait(ctx context.Context, serveErr <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	}
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(listen string) string {
	if listen == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// findWebDir searches for the dashboard files in common locations.
// It checks "web", "../web", "../../web" and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web"}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
