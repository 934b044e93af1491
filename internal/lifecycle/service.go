package lifecycle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ShutdownTimeout bounds the graceful shutdown of a Service.
const ShutdownTimeout = 5 * time.Second

// Service is an HTTP server bound to a context.
type Service struct {
	Name    string
	server  *http.Server
	ln      net.Listener
	stopped chan error
}

// StartService listens on addr and serves handler until ctx is done.
func StartService(ctx context.Context, name, addr string, handler http.Handler) (*Service, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Name: name,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:      ln,
		stopped: make(chan error, 1),
	}

	log.Info().Str("service", name).Str("addr", ln.Addr().String()).Msg("Starting service")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ln)
	}()

	go func() {
		var err error
		select {
		case err = <-serveErr:
		case <-ctx.Done():
			log.Info().Str("service", name).Msg("Shutting down service")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
			err = s.server.Shutdown(shutdownCtx)
			cancel()
			if serr := <-serveErr; err == nil {
				err = serr
			}
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Error().Err(err).Str("service", name).Msg("Service failed")
		}
		s.stopped <- err
		close(s.stopped)
	}()

	return s, nil
}

// Addr returns the address the service listens on.
func (s *Service) Addr() string {
	return s.ln.Addr().String()
}

// Wait blocks until the service has stopped and returns its error.
func (s *Service) Wait() error {
	return <-s.stopped
}
