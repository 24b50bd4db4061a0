package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"telephony-bridge/internal/ami"
	"telephony-bridge/internal/calls"
	"telephony-bridge/internal/config"
	"telephony-bridge/internal/db"
	"telephony-bridge/internal/httpapi"
	"telephony-bridge/internal/hub"
	"telephony-bridge/internal/queue"
)

func main() {
	cfgPath := flag.String("config", "/etc/telephonyd.yaml", "config file path")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBDSN)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventHub := hub.New(log)

	pbx := ami.NewClient(cfg.PBXAddr(), cfg.PBX.Username, cfg.PBX.Secret, log)
	store := calls.NewCallStore(pool, log)
	tracker := calls.NewTracker(pbx, eventHub, store, log)
	pbx.OnEvent(tracker.HandleEvent)

	ctrl := queue.NewController(pbx, log)

	router := httpapi.NewRouter(cfg, pool, pbx, tracker, ctrl, eventHub)
	srv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: the event stream holds responses open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pbx.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("telephony bridge listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown error", "error", err)
		}

		pbx.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("run error", "error", err)
		os.Exit(1)
	}
}
