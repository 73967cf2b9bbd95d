package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/config"
	"github.com/ariefcatur/go-shop-api.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-api.git/internal/kafka"
	"github.com/ariefcatur/go-shop-api.git/internal/metrics"
	"github.com/ariefcatur/go-shop-api.git/internal/postgres"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	"github.com/ariefcatur/go-shop-api.git/internal/stripe"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (one writer, topic per message)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Payment processor
	processor := stripe.NewClient(cfg.StripeAPIKey, cfg.StripeAPIBase, cfg.StripeTimeout)

	// Repos & services
	cartRepo := &shop.CartRepo{DB: db}
	orderRepo := &shop.OrderRepo{DB: db}
	invRepo := &shop.InventoryRepo{DB: db}

	checkout := &shop.Checkout{
		Carts:     cartRepo,
		Orders:    orderRepo,
		Inventory: invRepo,
		Producer:  prod,
		Service:   cfg.ServiceName,
	}
	orders := &shop.Orders{Store: orderRepo, Producer: prod, Service: cfg.ServiceName}
	payments := &shop.Payments{
		Orders:    orderRepo,
		Processor: processor,
		Dedup:     redisx.Dedup{R: rdb},
		Status:    redisx.StatusCache{R: rdb},
		Producer:  prod,
		Service:   cfg.ServiceName,
	}

	// Router
	m := metrics.NewServerMetrics("api")
	router := httpx.NewRouter(m)

	ph := &httpx.PaymentsHandler{Engine: payments, WebhookSecret: cfg.StripeWebhookSecret}
	ph.RegisterPublic(router)

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.JWTSecret))
		(&httpx.CartHandler{Carts: cartRepo}).Register(r)
		oh := &httpx.OrdersHandler{Checkout: checkout, Orders: orders, Payments: payments, Redis: rdb}
		oh.Register(r, auth.RequireRole("admin"))
		ph.RegisterAuthed(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // closes the inbox -> flush & close writer
	prod.WaitClosed() // drain
}
