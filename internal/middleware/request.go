package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slotter-org/cocreation-backend/internal/errordata"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/requestdata"
)

const RequestIDHeader = "X-Request-ID"

// SessionSource yields the current workshop session id.
type SessionSource interface {
	Current() string
}

// AttachRequestContext stamps every request with an id and a snapshot of the
// current session, then writes one access log line when the handler returns.
func AttachRequestContext(sessions SessionSource, log *logger.Logger) gin.HandlerFunc {
	accessLog := log.With("middleware", "AccessLog")
	return func(c *gin.Context) {
		start := time.Now()

		requestID, err := uuid.Parse(c.GetHeader(RequestIDHeader))
		if err != nil {
			requestID = uuid.New()
		}
		rd := &requestdata.RequestData{RequestID: requestID}
		if sessions != nil {
			rd.SessionID = sessions.Current()
		}

		ctx := c.Request.Context()
		ctx = requestdata.WithRequestData(ctx, rd)
		ctx = errordata.WithErrorData(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID.String())

		c.Next()

		fields := []interface{}{
			"requestID", requestID.String(),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if ed := errordata.GetErrorData(ctx); ed != nil && ed.HasMessage() {
			fields = append(fields, "error", ed.Message)
		}
		switch {
		case c.Writer.Status() >= 500:
			accessLog.Warn("Request failed", fields...)
		default:
			accessLog.Debug("Request handled", fields...)
		}
	}
}
