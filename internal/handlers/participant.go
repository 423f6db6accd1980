package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/requestdata"
	"github.com/slotter-org/cocreation-backend/internal/services"
)

type ParticipantHandler struct {
	log               *logger.Logger
	onboardingService services.OnboardingService
}

func NewParticipantHandler(log *logger.Logger, onboardingService services.OnboardingService) *ParticipantHandler {
	return &ParticipantHandler{
		log:               log.With("handler", "ParticipantHandler"),
		onboardingService: onboardingService,
	}
}

// Boot creates the participant on first visit and returns the visible transcript.
func (ph *ParticipantHandler) Boot(c *gin.Context) {
	ctx := c.Request.Context()
	token := c.Param("token")
	messages, err := ph.onboardingService.Boot(ctx, token, requestdata.SessionID(ctx))
	if err != nil {
		ph.log.Warn("Participant boot failed", "token", token, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (ph *ParticipantHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "retryable": false, "reply": chatFallbackReply})
		return
	}
	token := c.Param("token")
	reply, err := ph.onboardingService.Chat(c.Request.Context(), token, req.Message)
	if err != nil {
		ph.log.Warn("Participant chat failed", "token", token, "error", err)
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
