package utils

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Server wraps http.Server and drains in-flight requests on SIGTERM/SIGINT.
type Server struct {
	*http.Server

	log             *zap.Logger
	shutdownTimeout time.Duration
	signals         chan os.Signal
	done            chan struct{}
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		log:             log,
		shutdownTimeout: DefaultShutdownTimeout,
		signals:         make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// ListenAndServe listens on srv.Addr and blocks until the server has shut down.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "utils:ListenAndServe: listen")
	}
	return srv.Serve(ln)
}

// Serve accepts on ln. A clean shutdown returns nil.
func (srv *Server) Serve(ln net.Listener) error {
	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(srv.signals)
	go srv.handleSignals()

	srv.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
	err := srv.Server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// Wait until Shutdown finished
	<-srv.done
	return nil
}

// Stop triggers the same graceful shutdown as SIGTERM.
func (srv *Server) Stop() {
	srv.signals <- syscall.SIGTERM
}

func (srv *Server) handleSignals() {
	sig := <-srv.signals
	srv.log.Info("graceful shutting down HTTP server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		srv.log.Info("HTTP server shutdown success")
	}
	close(srv.done)
}

// GraceServer starts an HTTP server that shuts down gracefully on SIGTERM.
func GraceServer(addr string, handler http.Handler) error {
	return NewServer(addr, handler, Logger).ListenAndServe()
}
