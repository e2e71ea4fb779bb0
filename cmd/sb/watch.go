package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/feed"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

var (
	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	toastTitleStyle = lipgloss.NewStyle().Bold(true)
	toastMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		window   time.Duration
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print debounced toasts for simulated changes to your items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.actor()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			if !cmd.Flags().Changed("window") {
				window = a.cfg.Toasts.Debounce
			}
			simCfg := simulatorConfig(a.cfg, user)
			if cmd.Flags().Changed("seed") {
				simCfg.Seed = seed
			}
			return a.watch(ctx, cmd.OutOrStdout(), user, window, simCfg)
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().DurationVar(&window, "window", 0, "debounce window (default from config, 3s)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "simulator seed")
	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, user string, window time.Duration, simCfg feed.SimulatorConfig) error {
	relevant := 0
	for _, it := range a.store.ListItems(a.cfg.Board, board.ViewFilter{}) {
		if notify.IsRelevant(notify.Event{Item: feed.ItemRef(it)}, user) {
			relevant++
		}
	}
	if !a.jsonOut {
		fmt.Fprintf(out, "watching %d item(s) on %s for %s; window %s\n", relevant, a.cfg.Board, user, window)
	}

	var mu sync.Mutex
	coalescer := notify.NewCoalescer(notify.SinkFunc(func(t notify.Toast) {
		mu.Lock()
		defer mu.Unlock()
		if a.jsonOut {
			printJSON(out, t)
			return
		}
		fmt.Fprintln(out, renderToast(t))
	}), notify.WithWindow(window), notify.WithLogger(a.logger.Named("toasts")))
	pipeline := notify.NewPipeline(user, coalescer, a.logger.Named("pipeline"))

	detach := feed.NewBridge(pipeline, a.logger.Named("bridge")).Attach(a.store)
	defer detach()

	err := feed.NewSimulator(a.store, pipeline, simCfg, a.logger.Named("feed")).Run(ctx)
	coalescer.Flush()
	coalescer.Stop()
	if err != nil {
		a.logger.Error("simulator stopped", zap.Error(err))
	}
	return err
}

func renderToast(t notify.Toast) string {
	var b strings.Builder
	b.WriteString(toastTitleStyle.Render(t.ItemTitle))
	b.WriteString(" ")
	b.WriteString(toastMetaStyle.Render(fmt.Sprintf("%s · %s", t.ItemID, t.Section)))
	for _, c := range t.Changes {
		b.WriteString("\n• ")
		b.WriteString(c)
	}
	return toastStyle.Render(b.String())
}
