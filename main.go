package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/inspect"
	"photo-intake-bot/internal/mtproto"
	"photo-intake-bot/internal/notify"
	"photo-intake-bot/internal/order"
	"photo-intake-bot/internal/pkg"
	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/reconciler"
	"photo-intake-bot/internal/server"
	"photo-intake-bot/internal/session"
	"photo-intake-bot/internal/telegram"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	configPath := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	setupLogger(&cfg.Log)

	fileService := file.NewDefaultService(&cfg.Storage)
	if _, err := os.Stat(fileService.Root()); err != nil {
		log.Fatal(err)
	}

	tgBot, err := telegram.NewBot(&cfg.Telegram)
	if err != nil {
		log.Fatal(err)
	}
	fileService.SetDownloader(file.NewTelegramDownloader(tgBot.API(), pkg.NewHTTPClient(5*time.Minute, 0)))

	var mtprotoClient *mtproto.Client
	if cfg.MTProto.Enabled() {
		mtprotoClient, err = mtproto.NewClient(ctx, &cfg.MTProto, cfg.Telegram.Token)
		if err != nil {
			slog.Warn("Large file downloads disabled", "error", err)
		} else {
			fileService.SetLargeDownloader(mtprotoClient)
		}
	}

	lookup := order.NewHTTPLookup(&cfg.Lookup, pkg.NewHTTPClient(cfg.Lookup.Timeout, cfg.Lookup.RatePerSecond))

	deps := map[string]server.Pinger{}
	var journal order.Journal = order.NopJournal{}
	if cfg.DB.DSN != "" {
		if err := order.Migrate(cfg.DB.DSN); err != nil {
			log.Fatal(err)
		}
		pool, err := order.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		journal = order.NewDefaultJournal(order.NewDefaultRepo(pool))
		deps["postgres"] = pool
	}

	var secondary []notify.Notifier
	var mqttNotifier *notify.MQTTNotifier
	if cfg.MQTT.Enabled() {
		mqttNotifier, err = notify.NewMQTTNotifier(&cfg.MQTT)
		if err != nil {
			log.Fatal(err)
		}
		if err := mqttNotifier.Connect(ctx); err != nil {
			slog.Warn("MQTT broker unavailable, print queue publishing will retry", "error", err)
		}
		secondary = append(secondary, mqttNotifier)
	}
	notifier := notify.NewFanout(notify.NewTelegramNotifier(tgBot.API(), cfg.Telegram.OperatorID), secondary...)

	store := session.NewStore()
	machine := session.NewMachine(store, lookup, fileService, inspect.New(&cfg.Storage, &cfg.Quality), notifier, journal)
	tgBot.SetIntake(machine)
	tgBot.Start(ctx)

	reconcilerService := reconciler.NewDefaultService(store, fileService, &cfg.Storage)
	reconcilerService.Start(ctx)

	opsServer := server.New(&cfg.Server, deps)
	opsServer.Start()

	<-ctx.Done()
	slog.Info("Shutting down...")
	shutdownCtx, shutdown := context.WithTimeout(context.Background(), time.Second*15)
	defer shutdown()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to stop ops server", "error", err)
	}
	if err := reconcilerService.Stop(shutdownCtx); err != nil {
		slog.Error("Failed to stop reconciler", "error", err)
	}
	if mqttNotifier != nil {
		mqttNotifier.Close()
	}
	if mtprotoClient != nil {
		if err := mtprotoClient.Close(); err != nil {
			slog.Error("Failed to stop MTProto client", "error", err)
		}
	}
	stats := notifier.Stats()
	slog.Info("Stopped", "dispatches_sent", stats.Sent, "dispatches_failed", stats.Failed)
}

func setupLogger(cfg *config.LogCfg) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
