package webserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Serve runs srv until ctx is done, then shuts it down gracefully. With a
// TLS reloader the listener serves HTTPS.
func Serve(ctx context.Context, srv *http.Server, tlsReloader *TLSReloader, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsReloader != nil {
			srv.TLSConfig = tlsReloader.GetConfig()
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("claim API listening", zap.String("addr", srv.Addr), zap.Bool("tls", tlsReloader != nil))

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
