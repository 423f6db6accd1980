package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/cocreation-backend/internal/errordata"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/services"
)

const chatFallbackReply = "Sorry, there was an error"

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, services.ErrParticipantNotFound), errors.Is(err, services.ErrGroupNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest, false
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, true
	default:
		return http.StatusInternalServerError, false
	}
}

func respondError(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	noteError(c, err)
	c.JSON(status, gin.H{"error": err.Error(), "retryable": retryable})
}

// respondChatError also carries the fallback reply the chat UI shows in place
// of the assistant turn.
func respondChatError(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	noteError(c, err)
	c.JSON(status, gin.H{"error": err.Error(), "retryable": retryable, "reply": chatFallbackReply})
}

func noteError(c *gin.Context, err error) {
	if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
		ed.SetMessage(err.Error())
	}
}

type chatRequest struct {
	Message string `json:"message"`
}
