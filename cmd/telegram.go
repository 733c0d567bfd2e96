package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/prltutor/internal/logging"
	"github.com/abhisek/prltutor/internal/telegram"
)

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Serve the tutor as a Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.TelegramToken == "" {
			return errors.New("PRLTUTOR_TELEGRAM_TOKEN is required")
		}

		logger, err := logging.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("connect to telegram: %w", err)
		}
		logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

		if _, err := bot.Request(tgbotapi.NewSetMyCommands(telegram.Commands...)); err != nil {
			logger.Warn("failed to set bot commands", zap.Error(err))
		}

		handler := telegram.NewHandler(bot, func(ctx context.Context, userID string) (telegram.Engine, error) {
			e, err := rt.engine(ctx, userID)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, logger)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		defer bot.StopReceivingUpdates()

		err = handler.Run(ctx, updates)
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown signal received")
			return nil
		}
		return err
	},
}
