package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starplanner/internal/bot"
	"starplanner/internal/config"
	"starplanner/internal/repository"
	"starplanner/internal/service"
	"starplanner/internal/telegram"
	"starplanner/internal/webapp"
)

const jobTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	donationRepo := repository.NewDonationRepository(db)

	generator := service.NewGenerator(taskRepo, userRepo, cfg.LookaheadDays)
	taskSvc := service.NewTaskService(taskRepo, generator)
	donationSvc := service.NewDonationService(donationRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, taskSvc, donationSvc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	sender := telegram.NewSender(telegramBot.API(), telegram.RetryPolicy{
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     cfg.RetryBackoff,
	})
	notifier := service.NewNotifier(userRepo, taskRepo, notificationRepo, sender, cfg.SendDelay)

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.TickInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		now := time.Now()
		if _, err := generator.GenerateDueInstances(jobCtx, now); err != nil {
			log.Printf("[warn] generate instances: %v", err)
		}
		if err := notifier.RunTick(jobCtx, now); err != nil {
			log.Printf("[warn] notifier tick: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule ticks: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := webapp.NewServer(userRepo, taskSvc, cfg.TelegramToken, cfg.JWTSecret)
	go func() {
		if err := server.Listen(cfg.HTTPAddr); err != nil {
			log.Printf("[warn] mini app api stopped: %v", err)
		}
	}()
	defer func() {
		if err := server.Shutdown(); err != nil {
			log.Printf("[warn] mini app api shutdown: %v", err)
		}
	}()

	log.Println("[info] starplanner started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("[info] shutdown complete")
}
