package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/bootstrap"
	"github.com/unkn0wn-root/precache/config"
	"github.com/unkn0wn-root/precache/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	path := flag.String("config", envOrDefault("PRECACHE_CONFIG", "precache.toml"), "path to TOML config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", precache.Fields{"err": err})
		return 1
	}

	// serve right away; requests miss until the first generation is active
	go func() {
		if err := app.Start(ctx); err != nil {
			log.Error("initial install failed", precache.Fields{"err": err})
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", precache.Fields{"addr": cfg.ListenAddr, "namespace": cfg.Namespace})
		errCh <- srv.ListenAndServe()
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", precache.Fields{"err": err})
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := app.Close(shutdownCtx); err != nil {
		log.Warn("close failed", precache.Fields{"err": err})
	}
	return code
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
