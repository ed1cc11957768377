package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/checkout"
	"github.com/craftline/storefront/internal/config"
	"github.com/craftline/storefront/internal/httpx"
	"github.com/craftline/storefront/internal/inventory"
	kafkax "github.com/craftline/storefront/internal/kafka"
	"github.com/craftline/storefront/internal/notify"
	"github.com/craftline/storefront/internal/orders"
	"github.com/craftline/storefront/internal/payments"
	"github.com/craftline/storefront/internal/postgres"
	"github.com/craftline/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for outbound notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicNotifications, 1024, log)
	prod.Start(ctx)

	orderRepo := &orders.Repo{DB: db}
	catalog := &inventory.Catalog{DB: db}
	validator := &inventory.Validator{Products: catalog}
	ledger := &inventory.Ledger{DB: db}

	checkoutSvc := &checkout.Service{
		Products:  catalog,
		Validator: validator,
		Orders:    orderRepo,
		Addresses: orderRepo,
		Sessions:  payments.NewHTTPSessionClient(cfg.Provider.BaseURL, cfg.Provider.SecretKey),
		Pricing:   cfg.Pricing,
		Provider:  cfg.Provider,
		Log:       log,
	}

	processor := &payments.Processor{
		Orders:   orderRepo,
		Ledger:   ledger,
		Notifier: &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName},
		Locks:    &redisx.Mutex{Client: rdb},
		Dedup:    &redisx.Dedup{Client: rdb, Service: cfg.ServiceName},
		Log:      log,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{
		Checkout:      checkoutSvc,
		Validator:     validator,
		Catalog:       catalog,
		Orders:        orderRepo,
		Processor:     processor,
		WebhookSecret: []byte(cfg.Provider.WebhookSecret),
		Log:           log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // stop intake, flush & close writer
	cancel()
	prod.WaitClosed()
}
