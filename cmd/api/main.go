package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/supserrr/vevurn-sub002/api/routes"
	"github.com/supserrr/vevurn-sub002/internal/bootstrap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rt := bootstrap.Start("api")
	defer rt.Close()
	logg := rt.Logger

	ctx, stop := rt.Context()
	defer stop()

	deps, err := wire(ctx, rt)
	rt.Must("api wiring", err)

	addr := ":" + listenPort(rt.Config.App.Port)
	ctx = logg.WithField(ctx, "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api shutdown", err)
		}
	}()

	logg.Info(ctx, "api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.Must("api server", err)
	}
	logg.Info(ctx, "api stopped")
}

// listenPort prefers PORT, which Cloud Run injects, over the configured port.
func listenPort(configured string) string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return configured
}
