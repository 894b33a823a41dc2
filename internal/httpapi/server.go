// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package httpapi exposes the sign-in and sign-up pipelines over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/observability"
)

// Route paths.
const (
	RouteSignIn = "/auth/signin"
	RouteSignUp = "/auth/signup"
)

// Authenticator is the subset of auth.Service the HTTP layer drives.
type Authenticator interface {
	SignIn(ctx context.Context, req auth.SignInRequest) (*auth.SignInResult, error)
	SignUp(ctx context.Context, req auth.SignUpRequest) error
}

// Options configures a Server.
type Options struct {
	// ProxyHeader names the header holding the client IP, for example
	// X-Forwarded-For. Empty uses the socket peer address.
	ProxyHeader string
	// TrustedProxies lists the peer IPs or CIDR ranges whose ProxyHeader is
	// honoured. Requests from any other peer are attributed to the peer.
	TrustedProxies []string
	// Metrics is optional.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	app     *fiber.App
	auth    Authenticator
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New builds a Server with its routes registered.
func New(authn Authenticator, opts Options) (*Server, error) {
	if authn == nil {
		return nil, oops.Code("HTTP_INVALID_SERVER").Errorf("authenticator is required")
	}
	for _, proxy := range opts.TrustedProxies {
		if !validProxy(proxy) {
			return nil, oops.Code("HTTP_INVALID_TRUSTED_PROXY").
				With("proxy", proxy).
				Errorf("trusted proxy must be an IP address or CIDR range")
		}
	}

	s := &Server{
		auth:    authn,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	// Immutable: request strings outlive the handler in the audit queue.
	s.app = fiber.New(fiber.Config{
		AppName:                 "gatekeep",
		DisableStartupMessage:   true,
		Immutable:               true,
		ProxyHeader:             opts.ProxyHeader,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          opts.TrustedProxies,
		EnableIPValidation:      true,
		ErrorHandler:            s.handleError,
	})
	s.app.Use(s.requestLogger())
	s.app.Post(RouteSignIn, s.signIn)
	s.app.Post(RouteSignUp, s.signUp)

	return s, nil
}

func validProxy(proxy string) bool {
	if net.ParseIP(proxy) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(proxy)
	return err == nil
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil {
		return oops.Code("HTTP_SERVE_FAILED").With("addr", ln.Addr().String()).Wrap(err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
