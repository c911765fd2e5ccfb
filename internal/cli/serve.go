package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/config"
	"github.com/mroshb/group_quiz_bot/internal/database"
	"github.com/mroshb/group_quiz_bot/internal/handlers"
	"github.com/mroshb/group_quiz_bot/internal/knowledge"
	"github.com/mroshb/group_quiz_bot/internal/llm"
	"github.com/mroshb/group_quiz_bot/internal/transport/evolution"
	"github.com/mroshb/group_quiz_bot/internal/transport/httpapi"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"github.com/mroshb/group_quiz_bot/telegram"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and quiz workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", os.Getenv("PORT"), "port to listen on, overrides APP_PORT")
	return cmd
}

func runServe(ctx context.Context, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("Starting group quiz bot...")

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.AppPort = port
	}
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			return err
		}
		logger.Info("Production security validation passed")
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var db *gorm.DB
	if cfg.HasAuditDB() {
		db, err = database.Connect(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
	} else {
		logger.Info("No audit database configured, audit entries go to the log only")
	}

	gen, err := llm.NewOpenAIGenerator(llm.OpenAIOptions{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return err
	}

	var search knowledge.KnowledgeSearch
	if cfg.WeaviateHost != "" {
		ws, err := knowledge.NewWeaviateSearch(cfg.WeaviateHost, cfg.WeaviateScheme, cfg.WeaviateClass)
		if err != nil {
			logger.Warn("Knowledge search unavailable, generating without context", "error", err)
		} else {
			search = ws
		}
	}

	var (
		transport handlers.MessageTransport
		instance  httpapi.InstanceStatus
		bot       *telegram.Bot
	)
	switch cfg.Transport {
	case config.TransportTelegram:
		bot, err = telegram.InitBot(cfg.BotToken, cfg.AppEnv == "development", cfg.GetSendMinInterval())
		if err != nil {
			return err
		}
		transport = bot
	default:
		client := evolution.NewClient(cfg.EvolutionURL, cfg.EvolutionAPIKey, cfg.EvolutionInstance, cfg.GetSendMinInterval())
		transport = client
		instance = client
	}

	mgr := handlers.NewHandlerManager(cfg, db, store, gen, search, transport)
	if bot != nil {
		bot.Listen(mgr.Dispatcher)
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           httpapi.NewRouter(mgr, instance),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", cfg.AppPort, "transport", cfg.Transport, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("Shutting down gracefully...")
	case <-ctx.Done():
		logger.Info("Context canceled, shutting down...")
	case runErr = <-serverErr:
		logger.Error("HTTP server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	if bot != nil {
		bot.Stop()
	}
	mgr.Shutdown(shutdownGrace)

	logger.Info("Bot stopped")
	return runErr
}
