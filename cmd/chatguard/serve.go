package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/api"
	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/conf"
	"github.com/DevRickLin/chatguard/internal/data"
	"github.com/DevRickLin/chatguard/internal/infra/feishu"
	"github.com/DevRickLin/chatguard/internal/infra/openai"
	"github.com/DevRickLin/chatguard/internal/logger"
	"github.com/DevRickLin/chatguard/internal/metrics"
	"github.com/DevRickLin/chatguard/internal/server"
	"github.com/DevRickLin/chatguard/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Feishu and run the protection engine",
	Long: `Start the engine: connect to Feishu over WebSocket, route every chat event
through the enabled features and serve the control API on 127.0.0.1.

Configuration comes from CONFIG_FILE (TOML) and environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, err := conf.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.Initialize(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)

	var completer data.Completer
	if cfg.Chatbot.APIKey != "" {
		completer = openai.NewClient(cfg.Chatbot.APIKey, cfg.Chatbot.BaseURL, cfg.Chatbot.Model, cfg.Chatbot.Timeout)
		log.Info("chatbot responder enabled", zap.String("model", cfg.Chatbot.Model))
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(data.Options{
		DBPath:        cfg.Store.DBPath,
		DefaultPrefix: cfg.Store.Prefix,
		SendRate:      cfg.Feishu.SendRate,
		HistorySize:   cfg.Chatbot.HistorySize,
	}, feishuClient, completer, log)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()
	log.Info("store opened", zap.String("path", cfg.Store.DBPath))

	if cfg.Store.Owner != "" {
		if err := repos.Store.SetOwnerIdentity(ctx, cfg.Store.Owner); err != nil {
			return err
		}
	}

	// Initialize usecase and service layers
	clock := domain.RealClock{}
	m := metrics.New()
	uc := biz.NewUsecases(cfg.ToBizConfig(), clock)

	engine := service.NewEngine(service.EngineConfig{
		NotifyTarget:       cfg.Engine.NotifyTarget,
		ActionTimeout:      cfg.Engine.ActionTimeout,
		ChatbotTimeout:     cfg.Chatbot.Timeout,
		ChatbotAutoDisable: cfg.Chatbot.AutoDisable,
		Alerts:             cfg.Alerts,
	}, uc, repos.Transport, repos.Store, repos.Store, repos.Responder, clock, domain.UUIDGenerator{}, log, m)
	defer engine.Stop()

	for _, name := range cfg.Engine.EnabledFeatures {
		engine.SetFeature(name, true)
	}

	dispatchCfg := service.DefaultDispatcherConfig()
	if cfg.Engine.Workers > 0 {
		dispatchCfg.Workers = cfg.Engine.Workers
	}
	dispatcher := service.NewDispatcher(dispatchCfg, engine.ProcessInboundEvent, log)
	defer dispatcher.Stop()

	scheduler := service.NewMaintenanceScheduler(uc, clock, cfg.Engine.MediaSweepInterval, cfg.Engine.MediaMaxAge, log, m)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Control API for the CLI and the MCP server
	apiServer := api.NewServer(engine, repos.Store, dispatcher, m.Handler(), cfg.API.Port, log)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("API server error", zap.Error(err))
		}
	}()
	log.Info("control API started", zap.Int("port", cfg.API.Port))

	srv := server.NewFeishuServer(feishuClient, dispatcher, clock, cfg.Feishu.DedupeTTL, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()
	log.Info("chatguard started", zap.Strings("features", cfg.Engine.EnabledFeatures))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		if err != nil {
			log.Error("feishu connection failed", zap.Error(err))
		}
	}

	srv.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
		log.Warn("API server shutdown", zap.Error(stopErr))
	}
	return err
}
