package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/internal/config"
	"gitlab.com/yelinaung/tgbot/internal/logger"
	"gitlab.com/yelinaung/tgbot/internal/pollbot"
	"gitlab.com/yelinaung/tgbot/internal/telemetry"
	"gitlab.com/yelinaung/tgbot/telegram"
)

const (
	shutdownTimeout = 10 * time.Second
	// pollLifetime closes polls nobody finished voting on.
	pollLifetime = 24 * time.Hour
)

type runFlags struct {
	configFile         string
	dropPendingUpdates bool
}

func newRunCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file (overrides BOT_CONFIG_FILE)")
	cmd.Flags().BoolVar(&flags.dropPendingUpdates, "drop-pending-updates", false, "Drop updates received while the bot was offline")
	return cmd
}

func run(ctx context.Context, flags runFlags) error {
	if flags.configFile != "" {
		if err := os.Setenv("BOT_CONFIG_FILE", flags.configFile); err != nil {
			return fmt.Errorf("failed to set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		logger.SetJSON()
	}
	if err := logger.InitHashSalt(); err != nil {
		return err
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:     "pollbot",
		ServiceVersion:  version,
		TraceExporter:   cfg.TraceExporter,
		MetricsExporter: cfg.MetricsExporter,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	botOpts := []telegram.Option{
		telegram.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if cfg.APIBaseURL != "" {
		botOpts = append(botOpts, telegram.WithBaseURL(cfg.APIBaseURL))
	}
	tg, err := telegram.NewBot(cfg.TelegramBotToken, botOpts...)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	store, closeStore, err := openPersistence(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ext.NewMetrics(reg)

	pb, err := pollbot.New(cfg, pollbot.WithPollLifetime(pollLifetime))
	if err != nil {
		return fmt.Errorf("failed to create poll bot: %w", err)
	}

	appOpts := []ext.Option{
		ext.WithConcurrentUpdates(cfg.ConcurrentUpdates),
		ext.WithJobQueue(ext.NewJobQueue()),
		ext.WithMetrics(metrics),
		ext.WithTracerProvider(providers.TracerProvider),
		ext.WithPostInit(pb.PostInit),
	}
	if store != nil {
		appOpts = append(appOpts, ext.WithPersistence(store))
	}
	app, err := ext.NewApplication(tg, appOpts...)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	if err := pb.Register(app); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsRouter(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		if cfg.Mode == config.ModeWebhook {
			opts := ext.WebhookOptions{
				Listen:             cfg.WebhookListen,
				Port:               cfg.WebhookPort,
				URLPath:            cfg.WebhookPath,
				WebhookURL:         cfg.WebhookURL,
				SecretToken:        cfg.WebhookSecret,
				DropPendingUpdates: flags.dropPendingUpdates,
			}
			if cfg.MetricsAddr == "" {
				opts.MetricsHandler = metrics.Handler()
			}
			logger.Log.Info().Str("url", cfg.WebhookURL).Msg("Bot started in webhook mode")
			return app.RunWebhook(ctx, opts)
		}
		logger.Log.Info().Msg("Bot started polling")
		return app.RunPolling(ctx, ext.PollingOptions{DropPendingUpdates: flags.dropPendingUpdates})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Log.Info().Msg("Shut down")
	return nil
}

func metricsRouter(metrics *ext.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}
