package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/example/tagbot/internal/bot"
	"github.com/example/tagbot/internal/broadcast"
	"github.com/example/tagbot/internal/config"
	"github.com/example/tagbot/internal/database"
	"github.com/example/tagbot/internal/logger"
	"github.com/example/tagbot/internal/reminder"
	"github.com/example/tagbot/internal/scheduler"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logg.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		logg.WithError(err).Fatal("Failed to create bot")
	}
	api.Debug = cfg.Debug
	logg.WithField("bot", api.Self.UserName).Info("Authorized")

	groups := database.NewGroupRepository(db)
	users := database.NewUserRepository(db)
	reminders := database.NewReminderRepository(db)

	broadcaster := broadcast.New(api, users, logg)
	sched := scheduler.New(reminders, broadcaster, cfg.Location, logg, scheduler.WithOneShot(cfg.OneShotEnabled))
	service := reminder.NewService(groups, users, reminders, api, sched, cfg.Location, logg)
	registrar := reminder.NewRegistrar(groups, users, logg)

	botConfig := bot.DefaultConfig()
	botConfig.PollTimeout = cfg.PollTimeout
	b := bot.New(api, botConfig, registrar, service, broadcaster, cfg.Location, logg)

	if err := sched.Start(ctx); err != nil {
		logg.WithError(err).Fatal("Failed to start scheduler")
	}
	defer sched.Stop()

	go func() {
		sig := <-sigChan
		logg.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()

	logg.WithField("timezone", cfg.Location.String()).Info("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.WithError(err).Error("Bot error")
	}
	logg.Info("Bot stopped")
}
