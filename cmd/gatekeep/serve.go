// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"net"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/audit"
	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/httpapi"
	"github.com/gatekeep/gatekeep/internal/logging"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/store"
)

const shutdownTimeout = 5 * time.Second

var errNotServing = errors.New("http listener not serving")

// ObservabilityServer is the part of observability.Server serve drives.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Pool is a PostgreSQL pool usable by the credential store.
type Pool interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// KeyLoader reads the signing key.
	// Default: auth.LoadSigningKey
	KeyLoader func(path string) (*rsa.PrivateKey, error)

	// PoolFactory connects to PostgreSQL.
	// Default: store.Connect with retry
	PoolFactory func(ctx context.Context, url string) (Pool, error)

	// AuditOpener opens the login audit sink.
	// Default: audit.OpenDaily
	AuditOpener func(dir string, maxAge time.Duration) (io.WriteCloser, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(opts observability.Options) ObservabilityServer

	// ListenerFactory creates the HTTP listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// Logger overrides the process logger built from configuration.
	Logger *slog.Logger
}

func (d *ServeDeps) withDefaults() {
	if d.KeyLoader == nil {
		d.KeyLoader = auth.LoadSigningKey
	}
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			return store.Connect(ctx, url, store.ConnectOptions{})
		}
	}
	if d.AuditOpener == nil {
		d.AuditOpener = func(dir string, maxAge time.Duration) (io.WriteCloser, error) {
			return audit.OpenDaily(dir, audit.DailyOptions{MaxAge: maxAge})
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(opts observability.Options) ObservabilityServer {
			return observability.NewServer(opts)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP authentication server",
		Long: `Start the HTTP server exposing POST /auth/signin and POST /auth/signup.
The signing key is loaded once at start-up; a missing or unreadable key
stops the process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until ctx is cancelled or the HTTP
// listener fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := deps.Logger
	if logger == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger = logging.SetDefault("gatekeep", version, cfg.Log.Format, level)
	}

	key, err := deps.KeyLoader(cfg.Token.Key)
	if err != nil {
		return oops.With("operation", "load signing key").Wrap(err)
	}
	issuer, err := auth.NewTokenIssuer(key)
	if err != nil {
		return err
	}

	users, err := openUserRepository(ctx, cfg.Database, deps, logger)
	if err != nil {
		return err
	}
	defer users.close()

	auditDir := cfg.Audit.Dir
	if auditDir == "" {
		if auditDir, err = audit.DefaultDir(); err != nil {
			return err
		}
	}
	auditOut, err := deps.AuditOpener(auditDir, cfg.Audit.MaxAge)
	if err != nil {
		return oops.With("operation", "open audit log").Wrap(err)
	}
	auditLogger := audit.NewLogger(auditOut, audit.WithLogger(logger))
	defer func() {
		if closeErr := auditLogger.Close(); closeErr != nil {
			logger.Warn("error closing audit log", "error", closeErr)
		}
	}()

	svc, err := auth.NewServiceWithLogger(users.repo, auth.NewBcryptHasher(), issuer, auditLogger, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		checks := map[string]observability.Check{
			"http": func(context.Context) error {
				if !ready.Load() {
					return errNotServing
				}
				return nil
			},
		}
		if users.ping != nil {
			checks["database"] = users.ping
		}
		obsServer = deps.ObservabilityServerFactory(observability.Options{
			Addr:       cfg.Metrics.Addr,
			Checks:     checks,
			Collectors: auditLogger.Collectors(),
			Logger:     logger,
		})
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.With("operation", "start observability server").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		metrics = obsServer.Metrics()
	}

	api, err := httpapi.New(svc, httpapi.Options{
		ProxyHeader:    cfg.HTTP.ProxyHeader,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	ln, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := api.Serve(ln); serveErr != nil && ctx.Err() == nil {
			httpErrChan <- serveErr
		}
	}()

	ready.Store(true)
	cmd.Println("gatekeep started")
	logger.Info("gatekeep ready",
		"http_addr", ln.Addr().String(),
		"database_driver", cfg.Database.Driver,
		"audit_dir", auditDir,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context cancelled")
	case serveErr, ok := <-httpErrChan:
		if ok && serveErr != nil {
			runErr = oops.With("operation", "serve http").Wrap(serveErr)
		}
	}
	ready.Store(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	_ = ln.Close() //nolint:errcheck // already closed by a completed shutdown
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return runErr
}

// userStore is the selected credential store with its readiness check and
// release func. ping is nil for stores without a connection.
type userStore struct {
	repo  auth.UserRepository
	ping  observability.Check
	close func()
}

// openUserRepository selects the credential store for cfg.Driver.
func openUserRepository(ctx context.Context, cfg config.DatabaseConfig, deps *ServeDeps, logger *slog.Logger) (*userStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory credential store; records are lost on exit")
		return &userStore{repo: memory.NewUserRepository(), close: func() {}}, nil
	case config.DriverPostgres:
		pool, err := deps.PoolFactory(ctx, cfg.URL)
		if err != nil {
			return nil, oops.With("operation", "connect to database").Wrap(err)
		}
		logger.Info("connected to database")
		return &userStore{
			repo:  postgres.NewUserRepository(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "database.driver").Errorf("unknown driver %q", cfg.Driver)
	}
}

func stopObservability(srv ObservabilityServer, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
