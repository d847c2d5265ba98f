package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingualabel.org/internal/auth"
	"lingualabel.org/internal/config"
	"lingualabel.org/internal/httpapi"
	"lingualabel.org/internal/labelstudio"
	"lingualabel.org/internal/market"
	"lingualabel.org/internal/obs"
	"lingualabel.org/internal/payments"
	"lingualabel.org/internal/store/pg"
	"lingualabel.org/internal/stripe"
	"lingualabel.org/internal/syncbridge"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load(os.Getenv("LINGUALABEL_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Postgres when a DSN is configured; in-memory stores otherwise, which
	// keeps local development database-free.
	var (
		svc   market.Service
		users auth.Store
		ready httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		svc = store
		users = auth.NewPGStore(store.DB())
		ready = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		log.Print("no LINGUALABEL_PG_DSN set, using in-memory stores")
		svc = market.NewInMemory()
		users = auth.NewMemoryStore()
	}

	tool := labelstudio.New(cfg.LabelStudio.BaseURL, cfg.LabelStudio.Token, cfg.LabelStudio.Timeout)
	proc := stripe.New(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, cfg.Stripe.Timeout)

	api := httpapi.New(httpapi.Options{
		Market:     svc,
		Users:      users,
		Bridge:     syncbridge.New(svc, tool),
		Payments:   payments.New(svc, proc),
		Ready:      ready,
		Version:    version,
		TokenTTL:   cfg.TokenTTL,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting lingualabel-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
