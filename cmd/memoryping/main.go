package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"memoryping/internal/bot"
	"memoryping/internal/config"
	"memoryping/internal/repository"
	"memoryping/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("timezone")
	}

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	reminderRepo := repository.NewReminderRepository(db)
	profileRepo := repository.NewProfileRepository(db, cfg.DefaultTimezone)
	counterRepo := repository.NewCounterRepository(db)

	scheduler := service.NewSchedulerService(reminderRepo, loc, log)
	reminderSvc := service.NewReminderService(reminderRepo, profileRepo, counterRepo, scheduler, log)
	digestSvc := service.NewDigestService(reminderSvc)

	telegramBot, err := bot.New(cfg.TelegramToken, reminderSvc, digestSvc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}
	scheduler.SetNotifier(telegramBot)

	if err := scheduler.RescheduleAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("reschedule")
	}

	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("digest")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("schedule digest")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Msg("memoryping started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
