// Worker drains the Redis notification outbox and delivers mail over SMTP.
// Requires REDIS_ADDR and SMTP_HOST.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tenant-access-control/internal/config"
	"tenant-access-control/internal/logger"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/notification/redisqueue"
	"tenant-access-control/internal/notification/smtp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "notification-worker"})

	if !cfg.OutboxEnabled() {
		log.Fatal().Msg("worker: REDIS_ADDR is required")
	}
	if !cfg.MailEnabled() {
		log.Fatal().Msg("worker: SMTP_HOST is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := redisqueue.Connect(ctx, redisqueue.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err != nil {
		log.Fatal().Err(err).Msg("worker: redis")
	}
	defer client.Close()

	sender := smtp.NewSender(smtp.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FrontendURL: cfg.FrontendURL,
	})
	queue := redisqueue.New(client, redisqueue.DefaultKey)

	log.Info().Str("redis", cfg.RedisAddr).Str("smtp", cfg.SMTPHost).Msg("worker: consuming outbox")
	if err := notification.NewWorker(queue, sender, log).Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	log.Info().Msg("worker: stopped")
}
