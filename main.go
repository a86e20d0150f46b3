package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"querymind/app/api/httpapi"
	"querymind/app/api/mcptool"
	"querymind/app/client/llm"
	"querymind/app/config"
	"querymind/app/service/audit"
	"querymind/app/service/memory"
	"querymind/app/service/pipeline"
	"querymind/app/service/session"
	"querymind/app/service/tokens"
	"querymind/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, llm.NewClient)
	do.Provide(di, session.NewStore)
	do.Provide(di, func(_ *do.Injector) (*tokens.Budget, error) {
		return tokens.New(tokens.WithModel(cfg.Pipeline.TokenModel)), nil
	})
	do.Provide(di, memory.New)
	do.Provide(di, audit.New)
	do.Provide(di, pipeline.New)
	do.Provide(di, httpapi.New)
	do.Provide(di, mcptool.New)

	slog.Info("Service started", "mode", cfg.Server.Mode)

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		do.MustInvoke[*audit.Service](di).Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		// the audit writer stops with the server
		defer cancel()

		if cfg.Server.Mode == "mcp" {
			return do.MustInvoke[*mcptool.Server](di).Run(groupCtx)
		}
		return do.MustInvoke[*httpapi.Server](di).Run(groupCtx)
	})

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}

	log.Info("Shutting down...")
}
