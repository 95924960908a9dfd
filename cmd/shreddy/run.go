package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shreddy/internal/config"
	"shreddy/internal/device"
	"shreddy/internal/feed"
	"shreddy/internal/indicator"
	"shreddy/internal/logging"
	"shreddy/internal/monitor"
	"shreddy/internal/reporting"
	"shreddy/internal/security"
	"shreddy/internal/server"
	"shreddy/internal/system"
	"shreddy/internal/wipe"
)

func runStation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	defer logger.Close()

	if err := security.SecurityChecks(cfg); err != nil {
		logger.Log("ERROR", "Security check failed", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := system.NewChecker(nil, logger.With("preflight"))
	if err := checker.Preflight(ctx, system.DefaultChecks(cfg)); err != nil {
		return err
	}

	source, err := monitor.NewNetlinkSource()
	if err != nil {
		return fmt.Errorf("не удалось открыть источник событий: %w", err)
	}
	defer source.Close()

	return serve(ctx, cfg, source, logger)
}

// station компоненты станции, собранные из конфигурации.
type station struct {
	registry   *device.Registry
	aggregator *indicator.Aggregator
	pipeline   *wipe.Pipeline
	monitor    *monitor.Monitor
	server     *server.Server
	closers    []func()
}

// newStation собирает станцию. runner исполняет внешние команды конвейера.
func newStation(cfg *config.Config, source monitor.EventSource, runner wipe.CommandRunner, logger *logging.Logger) *station {
	st := &station{registry: device.NewRegistry()}

	st.aggregator = indicator.NewAggregator(
		indicator.Open(cfg.Indicator.LED, logger.With("indicator")),
		indicator.AggregatorConfig{
			BlinkInterval: cfg.BlinkInterval(),
			BlinkCount:    cfg.Indicator.BlinkCount,
			ErrorRecheck:  cfg.ErrorRecheck(),
		},
		logger.With("indicator"),
	)

	notifiers := device.Notifiers{st.aggregator}
	if cfg.Feed.NATSURL != "" {
		publisher, err := feed.Connect(cfg.Feed.NATSURL, cfg.Feed.Subject, logger.With("feed"))
		if err != nil {
			// лента необязательна, станция продолжает работу без неё
			logger.Log("WARN", "Status feed disabled", "error", err)
		} else {
			st.closers = append(st.closers, func() { _ = publisher.Close() })
			notifiers = append(notifiers, publisher)
		}
	}

	var reporter wipe.Reporter
	if cfg.Reporting.Enabled {
		reporter = reporting.NewWriter(cfg, logger.With("reporting"))
	}

	st.pipeline = wipe.NewPipeline(runner, wipe.OptionsFromConfig(cfg), notifiers, reporter, logger.With("wipe"))

	// Конвейеры не привязаны к ctx: начатое затирание доводится до конца.
	spawn := func(rec *device.Record) {
		go func() {
			_ = st.pipeline.Erase(context.Background(), rec)
		}()
	}
	st.monitor = monitor.NewMonitor(source, st.registry, notifiers, spawn, logger.With("monitor"))
	st.server = server.NewServer(cfg, st.registry, logger.With("server"))
	return st
}

// Close releases optional outputs such as the status feed.
func (st *station) Close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
}

// Run работает до отмены ctx или первой ошибки компонента.
func (st *station) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.aggregator.Run(ctx) })
	g.Go(func() error { return st.monitor.Run(ctx) })
	g.Go(func() error { return st.server.ListenAndServe(ctx) })
	return g.Wait()
}

// serve собирает компоненты станции и работает до отмены ctx.
func serve(ctx context.Context, cfg *config.Config, source monitor.EventSource, logger *logging.Logger) error {
	st := newStation(cfg, source, wipe.ExecRunner{}, logger)
	defer st.Close()

	logger.Log("INFO", "Shreddy started", "version", Version, "status_addr", cfg.Address(), "profile", cfg.Wipe.Profile)

	err := st.Run(ctx)
	logger.Log("INFO", "Shreddy stopped", "devices", st.registry.Len())
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	defer logger.Close()

	results := system.NewChecker(nil, logger).Run(cmd.Context(), system.DefaultChecks(cfg))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATUS\tMESSAGE")
	failed := 0
	for _, res := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Tool, res.Status, res.Message)
		if res.Status == system.StatusFail {
			failed++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := security.SecurityChecks(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d check(s) failed", system.ErrToolUnavailable, failed)
	}
	return nil
}
