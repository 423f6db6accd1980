package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/services"
	"github.com/slotter-org/cocreation-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GroupFeedHandler streams a group's new turns to the connecting client.
func GroupFeedHandler(hub *socket.Hub, groupChatService services.GroupChatService, log *logger.Logger) gin.HandlerFunc {
	log = log.With("handler", "GroupFeed")
	return func(c *gin.Context) {
		ref := c.Param("ref")
		group, err := groupChatService.Resolve(c.Request.Context(), ref)
		if err != nil {
			respondError(c, err)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("Failed to upgrade to websocket", "error", err)
			return
		}

		// The request context ends with this handler; the pumps outlive it.
		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, uuid.New(), cancel, log)
		hub.Subscribe(client, []string{services.GroupChannel(group.Number)})
		log.Debug("Group feed connected", "group", group.Number, "client", client.ID)

		go client.WriteLoop(ctx)
		go client.ReadLoop(ctx)
	}
}
