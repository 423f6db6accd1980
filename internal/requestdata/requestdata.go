package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type key struct{}

var requestDataKey key

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// SessionID returns the session snapshot taken when the request arrived, or
// "" when the context carries no request data.
func SessionID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.SessionID
	}
	return ""
}

// RequestData is stamped once per request. SessionID is read from the
// registry at that moment, so one request sees one session throughout.
type RequestData struct {
	RequestID uuid.UUID
	SessionID string
}
