package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/config"
	"github.com/satyaki-up/sprintboard/internal/db"
	"github.com/satyaki-up/sprintboard/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	if err != nil {
		return renderError(stderr, err)
	}
	return 0
}

// app holds what every subcommand shares once the root has set up.
type app struct {
	configPath string
	dbPath     string
	user       string
	jsonOut    bool
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	database *sql.DB
	repo     *db.Repository
	store    *board.Store
	detach   func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sb",
		Short:         "sprintboard: a Scrum board with debounced change toasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to sbconfig.yaml (default: discovered from the working directory)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path")
	root.PersistentFlags().StringVar(&a.user, "user", "", "acting user (overrides config and SB_USER)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(a),
		newEpicCmd(a),
		newSprintCmd(a),
		newItemCmd(a),
		newViewCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, atom, err := logging.New(level, false)
	if err != nil {
		return fmt.Errorf("%w: %v", board.ErrInvalidInput, err)
	}
	a.logger, a.level = logger, atom

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.database = database
	a.repo = db.NewRepository(database)

	snap, err := a.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	a.store = board.NewStore(board.WithLogger(logger))
	a.store.Restore(snap)
	a.detach = a.store.Subscribe(a.repo.Persister(logger, 5*time.Second))

	logger.Debug("board loaded",
		zap.String("db", cfg.DBPath),
		zap.String("config", cfg.Path),
		zap.Int("items", len(snap.Items)))
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else if cwd, werr := os.Getwd(); werr == nil {
		cfg, err = config.Discover(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.FileName, err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if strings.TrimSpace(a.dbPath) != "" {
		cfg.DBPath = a.dbPath
	}
	if cfg.DBPath == "" {
		cfg.DBPath = db.DefaultPath()
	}
	if strings.TrimSpace(a.user) != "" {
		cfg.User = strings.TrimSpace(a.user)
	}
	return cfg, nil
}

// teardown is safe to call when setup never ran or failed halfway.
func (a *app) teardown() error {
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
	var err error
	if a.database != nil {
		err = a.database.Close()
		a.database = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// actor is the configured user; commands that write need one.
func (a *app) actor() (string, error) {
	if a.cfg.User == "" {
		return "", fmt.Errorf("%w: no user set (use --user, SB_USER or user: in %s)", board.ErrInvalidInput, config.FileName)
	}
	return a.cfg.User, nil
}

// emit prints v as JSON under --json, and calls text otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) {
	if a.jsonOut {
		printJSON(cmd.OutOrStdout(), v)
		return
	}
	text(cmd.OutOrStdout())
}

func renderError(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	switch {
	case errors.Is(err, board.ErrInvalidInput), errors.Is(err, board.ErrInvalidStateTransition):
		return 2
	case errors.Is(err, board.ErrNotFound):
		return 3
	case errors.Is(err, board.ErrConflict):
		return 4
	default:
		return 1
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseCSV(value string) []string {
	raw := strings.Split(strings.TrimSpace(value), ",")
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD)", board.ErrInvalidInput, value)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
