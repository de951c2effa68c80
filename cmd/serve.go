package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/server"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := server.NewServer(r.service, repositories.NewUserRepository(r.db), server.Config{
		Addr:          addr,
		Logger:        shared.WithLogger(r.logger, "component", "http"),
		RefreshMaxAge: r.config.Refresh.MaxAge(),
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
