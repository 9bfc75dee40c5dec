package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/logging"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Endpoint is a bound listener and the handler it serves.
type Endpoint struct {
	Name     string
	Listener net.Listener
	Handler  http.Handler
}

// Listen binds addr for handler.
func Listen(name, addr string, handler http.Handler) (Endpoint, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("daemon: listen %s on %s: %w", name, addr, err)
	}
	return Endpoint{Name: name, Listener: ln, Handler: handler}, nil
}

// MetricsMux serves h at /metrics.
func MetricsMux(h http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h)
	return mux
}

// Serve runs every endpoint until ctx is done or one of them fails, then
// shuts all of them down gracefully. A clean shutdown returns nil.
func Serve(ctx context.Context, log *logrus.Entry, endpoints ...Endpoint) error {
	if len(endpoints) == 0 {
		return ErrNoListeners
	}
	log = logging.OrDiscard(log)

	servers := make([]*http.Server, len(endpoints))
	errCh := make(chan error, len(endpoints))
	for i, ep := range endpoints {
		srv := &http.Server{Handler: ep.Handler, ReadHeaderTimeout: readHeaderTimeout}
		servers[i] = srv
		go func(ep Endpoint) {
			log.WithField("addr", ep.Listener.Addr().String()).Infof("%s listening", ep.Name)
			if err := srv.Serve(ep.Listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("daemon: %s: %w", ep.Name, err)
				return
			}
			errCh <- nil
		}(ep)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for i, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("daemon: shutdown %s: %w", endpoints[i].Name, err))
		}
	}
	log.Info("stopped")
	return errors.Join(errs...)
}
