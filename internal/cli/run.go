package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cosched/internal/config"
	"cosched/internal/host"
	"cosched/internal/journal"
	"cosched/internal/runtime/supervisor"
	logx "cosched/pkg/logx"
)

// stopTimeout bounds the wait for the current task and the watcher on exit.
const stopTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runHost(ctx)
		},
	}
}

func runHost(ctx context.Context) error {
	cfgm := config.NewConfigManager(flagConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}

	logs, log := logx.New(logConfig(cfg))
	defer logs.Close()
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	reloads := cfgm.Subscribe(4)
	defer cfgm.Unsubscribe(reloads)

	h, err := host.New(cfg, log,
		host.WithLogService(logs),
		host.WithLogLevel(flagLogLevel),
		host.WithJournal(store),
		host.WithReloads(reloads),
	)
	if err != nil {
		return err
	}
	defer h.Close()

	// The host loop owns the scheduler; the watcher only feeds it configs.
	sup := supervisor.New(ctx,
		supervisor.WithLogger(log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sup.Go("config.watch", cfgm.Watch)
	sup.Go("host.loop", h.Loop)

	<-sup.Context().Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sup.Stop(stopCtx)
}

// logConfig applies the --log-level override.
func logConfig(cfg *config.Config) logx.Config {
	lc := cfg.LogConfig()
	if lvl := strings.TrimSpace(flagLogLevel); lvl != "" {
		lc.Level = lvl
	}
	return lc
}

func openJournal(cfg *config.Config, log logx.Logger) (journal.Store, error) {
	if cfg.Journal == nil {
		return nil, nil
	}
	return journal.Open(journal.Config{
		Driver:      cfg.Journal.Driver,
		Path:        cfg.Journal.Path,
		BusyTimeout: cfg.Journal.Timeout(),
	}, log.With(logx.String("comp", "journal")))
}
