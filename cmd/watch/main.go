package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/container"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}
	defer c.Close()

	w, err := c.NewWatcher()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create watcher")
	}

	if err := w.Run(ctx); err != nil {
		logger.WithError(err).Error("Watcher stopped")
		return
	}

	st := w.Stats()
	logger.WithFields(logrus.Fields{
		"processed": st.Processed,
		"failed":    st.Failed,
	}).Info("Watcher exited")
}
