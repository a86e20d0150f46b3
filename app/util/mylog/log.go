package mylog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"querymind/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// Preinit installs a console logger usable before the config is loaded.
func Preinit() {
	slog.SetDefault(slog.New(consoleHandler(os.Stderr)))
}

// Init routes every record to the console and, when a bot token is set,
// errors and records carrying a "telegram" attr to Telegram.
func Init(cfg *config.Config) error {
	// stdout carries MCP frames in stdio mode
	var out io.Writer = os.Stderr

	router := slogmulti.Router()

	router = router.Add(consoleHandler(out))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			telegramFilter,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func consoleHandler(w io.Writer) slog.Handler {
	return console.NewHandler(w, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})
}

func telegramFilter(_ context.Context, r slog.Record) bool {
	hasTelegram := false

	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "telegram" {
			hasTelegram = true
			return false
		}

		return true
	})

	return r.Level == slog.LevelError || hasTelegram
}
