package environment

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// time granted to in-flight requests and queued rewards on shutdown
const shutdownTimeout = 15 * time.Second

// Serve runs the router until SIGINT/SIGTERM (TLS in PRD) and shuts the environment down
func (e *Environment) Serve(router http.Handler) error {
	srv := &http.Server{
		Addr:              e.Config.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if e.Tracker != nil && e.Tracker.Enabled() {
		go e.Tracker.Run(ctx, time.Minute)
	}

	errc := make(chan error, 1)
	go func() {
		e.Log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", e.Config.AppEnv))
		if e.Config.Production() {
			errc <- srv.ListenAndServeTLS(e.Config.CertFile, e.Config.KeyFile)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = e.Shutdown(shutdownTimeout)
			return err
		}
	case <-ctx.Done():
		e.Log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	return errors.Join(err, e.Shutdown(shutdownTimeout))
}
