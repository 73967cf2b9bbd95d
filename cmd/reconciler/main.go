package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ariefcatur/go-shop-api.git/internal/config"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
	"github.com/ariefcatur/go-shop-api.git/internal/reconciler"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &reconciler.Service{
		Inventory: &shop.InventoryRepo{DB: db},
		Dedup:     redisx.Dedup{R: rdb},
		Service:   cfg.ServiceName + "-reconciler",
	}

	group := getenv("RECONCILER_GROUP", "stock-reconciler")
	workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, shop.TopicStockAdjustFails, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("reconciler consumer started: group=%s topic=%s workers=%d",
			group, shop.TopicStockAdjustFails, workers)
		return cons.Start(gctx, svc.HandleStockAdjustFailed)
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
			log.Println("shutting down consumer...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("consumer exit: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
