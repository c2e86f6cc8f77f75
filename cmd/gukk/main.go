package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/gukk/pkg/gukk"
	"github.com/raterudder/gukk/pkg/log"
	"github.com/raterudder/gukk/pkg/poller"
	"github.com/raterudder/gukk/pkg/server"
)

func main() {
	cfg := gukk.Configured()
	client := &lazyClient{}
	p := poller.Configured(client)
	srv := server.Configured(p)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	level, err := log.LevelFromLLog(llog.GetLevel())
	if err != nil {
		panic(err)
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client.Client = gukk.NewClient(*cfg)
	defer func() {
		if err := client.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close portal client", slog.Any("error", err))
		}
	}()
	log.Ctx(ctx).InfoContext(
		ctx,
		"starting portal bridge",
		log.Username(cfg.Username),
		slog.String("baseURL", client.BaseURL()),
		slog.Duration("interval", p.Interval()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(ctx)
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "bridge failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "bridge exited cleanly")
}

// lazyClient lets the poller be configured before the flags holding the
// client's credentials are parsed.
type lazyClient struct {
	*gukk.Client
}
