package main

import (
	"context"
	"database/sql"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if len(cfg.AdminIDs) == 0 && len(cfg.AdminNames) == 0 {
		logger.Warn("no admins configured, nobody can create events")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("bot api", zap.Error(err))
	}
	logger.Info("authorized", zap.String("account", bot.Self.UserName))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	repo := NewSQLiteRepository(db)
	if err := repo.CreateTables(); err != nil {
		logger.Fatal("create tables", zap.Error(err))
	}

	notifier := &TelegramNotifier{bot: bot}
	engine := NewCapacityEngine(repo)
	sessions := NewSessionCache(repo)
	router := NewSessionRouter(repo, engine, notifier, sessions, cfg, logger, bot.Self.UserName)
	adapter := NewTelegramAdapter(bot, router, repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler := NewReminderScheduler(repo, notifier, cfg.RemindInterval, logger)
	go scheduler.Run(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := bot.GetUpdatesChan(u)
	if err != nil {
		logger.Fatal("updates channel", zap.Error(err))
	}

	for update := range updates {
		if update.CallbackQuery != nil {
			adapter.HandleCallback(update.CallbackQuery)
			continue
		}
		if update.Message != nil {
			adapter.HandleMessage(update.Message)
		}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.DisableStacktrace = true
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
