package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satyaki-up/sprintboard/internal/config"
	"github.com/satyaki-up/sprintboard/internal/feed"
	"github.com/satyaki-up/sprintboard/internal/logging"
	"github.com/satyaki-up/sprintboard/internal/notify"
	"github.com/satyaki-up/sprintboard/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen string
		noFeed bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and websocket channel, with live toasts for the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.actor()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen = listen
			}
			return a.serve(cmd.Context(), user, a.cfg.Feed.Enabled && !noFeed)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noFeed, "no-feed", false, "disable the simulated event feed")
	return cmd
}

func (a *app) serve(ctx context.Context, user string, simulate bool) error {
	logger := a.logger
	queue := notify.NewQueue(a.cfg.Toasts.Limit)
	hub := server.NewHub(logger.Named("ws"))

	toWebsocket := hub.ToastSink(a.cfg.Board, user)
	coalescer := notify.NewCoalescer(notify.SinkFunc(func(t notify.Toast) {
		queue.Push(t)
		toWebsocket.Push(t)
	}), notify.WithWindow(a.cfg.Toasts.Debounce), notify.WithLogger(logger.Named("toasts")))
	defer coalescer.Stop()
	pipeline := notify.NewPipeline(user, coalescer, logger.Named("pipeline"))

	unsubscribeHub := a.store.Subscribe(hub.OnChange)
	defer unsubscribeHub()
	detachBridge := feed.NewBridge(pipeline, logger.Named("bridge")).Attach(a.store)
	defer detachBridge()

	srv := server.New(a.store, queue, hub, server.Options{
		User:         user,
		DeletePolicy: a.cfg.Sprint.DeletePolicy,
		Activity:     a.repo,
		Logger:       logger.Named("http"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, a.cfg.Listen)
	})
	if simulate {
		sim := feed.NewSimulator(a.store, pipeline, simulatorConfig(a.cfg, user), logger.Named("feed"))
		g.Go(func() error {
			return sim.Run(gctx)
		})
	}
	if a.cfg.Path != "" {
		g.Go(func() error {
			err := config.Watch(gctx, a.cfg.Path, logger.Named("config"), func(c *config.Config) {
				a.applyReload(c, coalescer)
			})
			if err != nil {
				logger.Warn("config hot reload disabled", zap.Error(err))
			}
			return nil
		})
	}

	logger.Info("sprintboard serving",
		zap.String("listen", a.cfg.Listen),
		zap.String("user", user),
		zap.String("board", a.cfg.Board),
		zap.Bool("feed", simulate))

	err := g.Wait()
	coalescer.Flush()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// applyReload carries the settings that can change at runtime: log level
// and the toast debounce window.
func (a *app) applyReload(c *config.Config, coalescer *notify.Coalescer) {
	if !a.verbose {
		lvl, err := logging.ParseLevel(c.LogLevel)
		if err != nil {
			a.logger.Warn("ignoring log level", zap.String("log_level", c.LogLevel), zap.Error(err))
		} else {
			a.level.SetLevel(lvl)
		}
	}
	coalescer.SetWindow(c.Toasts.Debounce)
	a.logger.Info("settings applied",
		zap.Stringer("log_level", a.level.Level()),
		zap.Duration("debounce", coalescer.Window()))
}

func simulatorConfig(c *config.Config, user string) feed.SimulatorConfig {
	return feed.SimulatorConfig{
		User:        user,
		BoardID:     c.Board,
		MinInterval: c.Feed.MinInterval,
		MaxInterval: c.Feed.MaxInterval,
		Actors:      c.Feed.Actors,
		Seed:        c.Feed.Seed,
	}
}
