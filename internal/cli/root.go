package cli

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mroshb/group_quiz_bot/internal/config"
	"github.com/mroshb/group_quiz_bot/internal/storage"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:           "quizbot",
		Short:         "Group trivia quiz bot for WhatsApp and Telegram groups",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil {
				log.Println("No .env file found, using system environment")
			}
			logger.Init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to the dotenv file")
	cmd.Flags().StringVar(&port, "port", os.Getenv("PORT"), "port to listen on, overrides APP_PORT")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWhitelistCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newAuditCmd())
	return cmd
}

// openStore connects the shared state store. Without REDIS_ADDR state lives
// in process memory and is lost on restart.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory store")
		return storage.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := storage.NewRedisStore(client, cfg.GetStoreTTL())
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "redis unreachable")
	}
	logger.Info("Redis store connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

	return store, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", "error", err)
		}
	}, nil
}
