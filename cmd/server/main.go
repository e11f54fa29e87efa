package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/app"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/config"
	pkgconfig "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/config"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/logger"
)

func main() {
	pkgconfig.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		// Logger config may itself be broken, so fall back to stderr.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
