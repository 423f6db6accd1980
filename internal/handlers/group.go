package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/services"
)

type GroupHandler struct {
	log              *logger.Logger
	groupingService  services.GroupingService
	groupChatService services.GroupChatService
}

func NewGroupHandler(log *logger.Logger, groupingService services.GroupingService, groupChatService services.GroupChatService) *GroupHandler {
	return &GroupHandler{
		log:              log.With("handler", "GroupHandler"),
		groupingService:  groupingService,
		groupChatService: groupChatService,
	}
}

func (gh *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := gh.groupingService.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (gh *GroupHandler) Boot(c *gin.Context) {
	ref := c.Param("ref")
	messages, err := gh.groupChatService.Boot(c.Request.Context(), ref)
	if err != nil {
		gh.log.Warn("Group boot failed", "ref", ref, "error", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (gh *GroupHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "retryable": false, "reply": chatFallbackReply})
		return
	}
	ref := c.Param("ref")
	reply, err := gh.groupChatService.Chat(c.Request.Context(), ref, req.Message)
	if err != nil {
		gh.log.Warn("Group chat failed", "ref", ref, "error", err)
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
