package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/registry"
	"github.com/slotter-org/cocreation-backend/internal/requestdata"
	"github.com/slotter-org/cocreation-backend/internal/services"
)

type FacilitatorHandler struct {
	log                *logger.Logger
	sessions           *registry.Registry
	facilitatorService services.FacilitatorService
	groupingService    services.GroupingService
}

func NewFacilitatorHandler(
	log *logger.Logger,
	sessions *registry.Registry,
	facilitatorService services.FacilitatorService,
	groupingService services.GroupingService,
) *FacilitatorHandler {
	return &FacilitatorHandler{
		log:                log.With("handler", "FacilitatorHandler"),
		sessions:           sessions,
		facilitatorService: facilitatorService,
		groupingService:    groupingService,
	}
}

func (fh *FacilitatorHandler) ListParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	participants, err := fh.facilitatorService.ListParticipants(ctx, requestdata.SessionID(ctx))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (fh *FacilitatorHandler) NewSession(c *gin.Context) {
	sessionID, err := fh.sessions.Start(c.Request.Context())
	if err != nil {
		// The new id is live in memory; only persistence failed.
		fh.log.Warn("Session id not persisted", "sessionID", sessionID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
		"message":    "New session started: " + sessionID,
	})
}

func (fh *FacilitatorHandler) CurrentSession(c *gin.Context) {
	current := fh.sessions.Current()
	c.JSON(http.StatusOK, gin.H{
		"current_session_id": current,
		"has_active_session": current != "",
	})
}

func (fh *FacilitatorHandler) Themes(c *gin.Context) {
	ctx := c.Request.Context()
	themes, err := fh.facilitatorService.GenerateThemes(ctx, requestdata.SessionID(ctx))
	if err != nil {
		fh.log.Warn("Theme generation failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}

func (fh *FacilitatorHandler) FormGroups(c *gin.Context) {
	ctx := c.Request.Context()
	groups, err := fh.groupingService.FormGroups(ctx, requestdata.SessionID(ctx))
	if err != nil {
		fh.log.Error("Group formation failed", "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
