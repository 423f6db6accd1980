package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/chatlock"
	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/handlers"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/registry"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/server"
	"github.com/slotter-org/cocreation-backend/internal/services"
	"github.com/slotter-org/cocreation-backend/internal/socket"
)

type app struct {
	router             *gin.Engine
	facilitatorService services.FacilitatorService
	bucketService      services.BucketService
	closers            []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newGateway(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (llm.Gateway, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGenAIGateway(ctx, llm.GenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			EmbedModel: cfg.EmbedModel,
			Timeout:    cfg.Timeout,
		}, log)
	case "openai":
		return llm.NewOpenAIGateway(llm.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			EmbedModel: cfg.EmbedModel,
			Timeout:    cfg.Timeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{}

	dbService, err := openDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	theDB := dbService.DB()

	// Repositories Setup
	log.Info("Setting Up Repositories from Main now...")
	participantRepo := repos.NewParticipantRepo(theDB, log)
	chatTurnRepo := repos.NewChatTurnRepo(theDB, log)
	profileRepo := repos.NewProfileRepo(theDB, log)
	groupRepo := repos.NewGroupRepo(theDB, log)
	groupChatRepo := repos.NewGroupChatRepo(theDB, log)
	log.Info("Repositories Set Up From Main Successful :)")

	// Model Gateway Setup
	log.Info("Setting Up Model Gateway from Main now...", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	gateway, err := newGateway(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	log.Info("Model Gateway Set Up From Main Successful :)")

	// Session Registry Setup
	log.Info("Setting Up Session Registry from Main now...")
	var store registry.Store
	if cfg.Redis.Address != "" {
		redisStore, err := registry.NewRedisStore(log, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Key)
		if err != nil {
			log.Warn("Failed to init redis session store; keeping session in memory", "error", err)
		} else {
			store = redisStore
			a.closers = append(a.closers, redisStore.Close)
		}
	}
	sessions := registry.New(log, store)
	if err := sessions.Restore(ctx); err != nil {
		log.Warn("Could not restore current session", "error", err)
	}
	log.Info("Session Registry Set Up From Main Successful :)", "currentSession", sessions.Current())

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main Now...")
	wsHub := socket.NewHub(log)
	log.Info("Websocket Hub Set Up From Main Successful :)")

	// Services Setup
	log.Info("Setting up Services from Main now...")
	var notifier services.GroupNotifier
	if cfg.Email.SendgridAPIKey != "" && cfg.Email.FacilitatorEmail != "" {
		emailService, err := services.NewEmailService(log, cfg.Email.SendgridAPIKey, cfg.Email.FromEmail)
		if err != nil {
			log.Warn("Could not init EmailService", "error", err)
		} else {
			notifier = services.NewEmailNotifier(emailService, cfg.Email.FacilitatorEmail)
		}
	}
	if cfg.Export.Bucket != "" {
		bucketService, err := services.NewBucketService(ctx, log, cfg.Export.Bucket, cfg.Export.CredentialsFile)
		if err != nil {
			log.Warn("Could not init BucketService", "error", err)
		} else {
			a.bucketService = bucketService
			a.closers = append(a.closers, bucketService.Close)
		}
	}

	locks := chatlock.New()
	extractionService := services.NewExtractionService(log, gateway, participantRepo)
	onboardingService := services.NewOnboardingService(theDB, log, gateway, locks, participantRepo, chatTurnRepo, profileRepo, extractionService, services.OnboardingOptions{
		ConcludeAfter:    cfg.Onboarding.ConcludeAfter,
		ProfilePolicy:    cfg.Onboarding.ProfilePolicy,
		EmbedConclusions: cfg.LLM.EmbedConclusions,
	})
	groupingService := services.NewGroupingService(theDB, log, gateway, participantRepo, profileRepo, groupRepo, notifier)
	groupChatService := services.NewGroupChatService(theDB, log, gateway, locks, groupRepo, groupChatRepo, wsHub)
	a.facilitatorService = services.NewFacilitatorService(theDB, log, gateway, participantRepo, chatTurnRepo, profileRepo)
	log.Info("Services Set Up From Main Successful :)")

	// Handler Setup
	log.Info("Setting Up Handlers from Main now...")
	participantHandler := handlers.NewParticipantHandler(log, onboardingService)
	facilitatorHandler := handlers.NewFacilitatorHandler(log, sessions, a.facilitatorService, groupingService)
	groupHandler := handlers.NewGroupHandler(log, groupingService, groupChatService)
	exportHandler := handlers.NewExportHandler(a.facilitatorService)
	groupFeedHandler := handlers.GroupFeedHandler(wsHub, groupChatService, log)
	log.Info("Handlers Set Up From Main Successful :)")

	// Router Setup
	log.Info("Setting Up Router from Main now...")
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = server.NewRouter(server.RouterConfig{
		Log:                log,
		AllowOrigins:       cfg.Server.AllowOrigins,
		Sessions:           sessions,
		ParticipantHandler: participantHandler,
		FacilitatorHandler: facilitatorHandler,
		GroupHandler:       groupHandler,
		ExportHandler:      exportHandler,
		GroupFeedHandler:   groupFeedHandler,
	})
	log.Info("Router Set Up From Main Successful :)")
	return a, nil
}
