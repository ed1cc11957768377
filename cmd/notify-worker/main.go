package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/config"
	kafkax "github.com/craftline/storefront/internal/kafka"
	"github.com/craftline/storefront/internal/notify"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	dedup := &redisx.Dedup{Client: rdb, Service: "notify-worker"}

	sender := &notify.SMTPSender{Cfg: cfg.SMTP, Log: log}

	group := getenv("NOTIFY_GROUP", "notify-worker")
	workers := mustAtoi(os.Getenv("NOTIFY_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, notify.TopicNotifications, workers, log)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var env notify.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Error("undecodable notification envelope", zap.Error(err))
			return nil // poison message, commit and move on
		}
		if env.EventType != notify.EventOrderConfirmation {
			return nil
		}
		if seen, err := dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}

		p, err := kafkax.UnwrapPayload[notify.OrderConfirmationPayload](env.Payload)
		if err != nil {
			log.Error("undecodable confirmation payload", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		if err := sender.SendOrderConfirmation(ctx, p); err != nil {
			return err // redelivered; dedup key not yet set
		}
		_ = dedup.Mark(ctx, env.EventID)
		return nil
	}

	go func() {
		log.Info("notify consumer started",
			zap.String("group", group), zap.String("topic", notify.TopicNotifications), zap.Int("workers", workers))
		if err := cons.Start(ctx, handler); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	time.Sleep(500 * time.Millisecond)
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
