// Package main 内容预生成批处理入口（seeder）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolgenius-seeder/internal/cli"
	"schoolgenius-seeder/internal/config"
	apperrors "schoolgenius-seeder/pkg/errors"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/tracer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	path, args := cli.ConfigPath(args)

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return apperrors.ExitCode(err)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "schoolgenius-seeder",
		Version:     cfg.App.Version,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Error(ctx, "failed to init tracer", err)
		return 2
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	if err := cli.Run(ctx, cli.Env{Config: cfg, Out: os.Stdout}, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return apperrors.ExitCode(err)
	}
	return 0
}
