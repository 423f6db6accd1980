package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/db"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/registry"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/seed"
	"github.com/slotter-org/cocreation-backend/internal/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cocreation",
		Short:         "Creative workshop backend: onboarding chat, triad grouping and group co-creation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	})

	var upload bool
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Dump participants, chats and profiles as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), configPath, upload)
		},
	}
	exportCmd.Flags().BoolVar(&upload, "upload", false, "upload the dump to the export bucket instead of printing it")
	root.AddCommand(exportCmd)

	var rosterSession string
	seedCmd := &cobra.Command{
		Use:   "seed <roster.json>",
		Short: "Load a rehearsal roster of participants into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), configPath, args[0], rosterSession)
		},
	}
	seedCmd.Flags().StringVar(&rosterSession, "session", "", "session id to stamp on new participants (defaults to the current session)")
	root.AddCommand(seedCmd)

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(configPath)
		},
	})
	return root
}

// loadConfig reads .env, the yaml file and the environment, then builds the
// logger the rest of startup uses.
func loadConfig(configPath string) (*config.Config, *logger.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	bootLog, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	bootLog.Info("Attempting to load environment variables for Main now...")
	cfg.ApplyEnvOverrides(bootLog)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	log.Info("Environment variables loaded for Main :)", "logMode", cfg.LogMode, "dbDriver", cfg.Database.Driver, "llmProvider", cfg.LLM.Provider)
	return cfg, log, nil
}

func openDatabase(cfg *config.Config, log *logger.Logger) (db.Service, error) {
	log.Info("Setting Up Database from Main now...", "driver", cfg.Database.Driver)
	dbService, err := db.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	log.Info("Database Setup From Main Successful :)")
	return dbService, nil
}

func runMigrate(configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	_, err = openDatabase(cfg, log)
	return err
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down server now...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runExport(ctx context.Context, configPath string, upload bool) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	dump, err := a.facilitatorService.Export(ctx)
	if err != nil {
		return err
	}
	if !upload {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}
	if a.bucketService == nil {
		return fmt.Errorf("export bucket is not configured")
	}
	key, err := services.UploadExport(ctx, a.bucketService, dump, time.Now())
	if err != nil {
		return err
	}
	log.Info("Export uploaded :)", "key", key, "url", a.bucketService.GetPublicURL(key))
	return nil
}

func runSeed(ctx context.Context, configPath, rosterPath, sessionID string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	entries, err := seed.LoadRoster(rosterPath)
	if err != nil {
		return err
	}
	dbService, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	if sessionID == "" {
		sessionID = currentSession(ctx, cfg, log)
	}
	theDB := dbService.DB()
	_, err = seed.SyncRoster(ctx, theDB, log, repos.NewParticipantRepo(theDB, log), repos.NewProfileRepo(theDB, log), entries, sessionID)
	return err
}

// currentSession reads the persisted session id; without redis there is none.
func currentSession(ctx context.Context, cfg *config.Config, log *logger.Logger) string {
	if cfg.Redis.Address == "" {
		return ""
	}
	store, err := registry.NewRedisStore(log, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Key)
	if err != nil {
		log.Warn("Could not reach session store", "error", err)
		return ""
	}
	defer store.Close()
	sessions := registry.New(log, store)
	if err := sessions.Restore(ctx); err != nil {
		log.Warn("Could not restore current session", "error", err)
	}
	return sessions.Current()
}
