package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
)

type Server struct {
	addr            string
	handler         http.Handler
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

type ServerOptions struct {
	Addr            string
	Handler         http.Handler
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultListenAddress
	}
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultShutdownTimeoutSeconds) * time.Second
	}
	return &Server{
		addr:            addr,
		handler:         opts.Handler,
		logger:          logger.Named("http_server"),
		shutdownTimeout: timeout,
	}
}

// Run listens on the configured address until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown incomplete", zap.Error(err))
		_ = server.Close()
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
