package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okzk/sdnotify"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/a3rd/molniya/internal"
	"github.com/a3rd/molniya/internal/command"
	"github.com/a3rd/molniya/pkg/gateway"
	"github.com/a3rd/molniya/pkg/gateway/httpapi"
)

func main() {
	cmd := command.New()
	logs := cmd.Logs
	logger := logs.GetLogger()
	defer func() { _ = logger.Sync() }()

	logger.Infof("Starting molniya %s", internal.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := gateway.New(cmd.Config, logs, nil)
	if err != nil {
		logger.Fatalf("%+v", err)
	}

	api := httpapi.NewServer(cmd.Config.HTTP.Listen, o.Router(), o.Transport(), logs.GetChildLogger("http"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Run(ctx) })
	g.Go(func() error { return api.Run(ctx) })

	_ = sdnotify.Ready()
	defer func() { _ = sdnotify.Stopping() }()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("%+v", err)
	}

	logger.Info("Shutting down")
}
