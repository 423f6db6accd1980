package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/handlers"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/middleware"
)

type RouterConfig struct {
	Log                *logger.Logger
	AllowOrigins       []string
	Sessions           middleware.SessionSource
	ParticipantHandler *handlers.ParticipantHandler
	FacilitatorHandler *handlers.FacilitatorHandler
	GroupHandler       *handlers.GroupHandler
	ExportHandler      *handlers.ExportHandler
	GroupFeedHandler   gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	router.Use(middleware.AttachRequestContext(cfg.Sessions, cfg.Log))

	//-----------------------------------------
	// Health Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)

	router.GET("/export_json", cfg.ExportHandler.ExportJSON)

	api := router.Group("/api")

	//Participant
	participant := api.Group("/participant")
	{
		participant.GET("/boot/:token", cfg.ParticipantHandler.Boot)
		participant.POST("/chat/:token", cfg.ParticipantHandler.Chat)
	}

	//Facilitator
	facilitator := api.Group("/facilitator")
	{
		facilitator.GET("/participants", cfg.FacilitatorHandler.ListParticipants)
		facilitator.POST("/new_session", cfg.FacilitatorHandler.NewSession)
		facilitator.GET("/current_session", cfg.FacilitatorHandler.CurrentSession)
		facilitator.POST("/themes", cfg.FacilitatorHandler.Themes)
		facilitator.POST("/form_groups", cfg.FacilitatorHandler.FormGroups)
	}

	//Groups
	api.GET("/groups", cfg.GroupHandler.ListGroups)
	group := api.Group("/group/:ref")
	{
		group.GET("/boot", cfg.GroupHandler.Boot)
		group.POST("/chat", cfg.GroupHandler.Chat)
		group.GET("/ws", cfg.GroupFeedHandler)
	}

	return router
}
