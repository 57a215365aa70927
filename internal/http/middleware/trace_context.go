package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/english-trainer-backend/internal/pkg/ctxutil"
)

const requestIDHeader = "X-Request-Id"

// TraceContext tags each request with a request id (client supplied or
// generated) and the active span's trace id, so log lines and responses can
// be joined with traces. It must run after otelgin.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := &ctxutil.TraceData{RequestID: strings.TrimSpace(c.GetHeader(requestIDHeader))}
		if ids.RequestID == "" || len(ids.RequestID) > 128 {
			ids.RequestID = uuid.NewString()
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			ids.TraceID = sc.TraceID().String()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), ids))
		c.Header(requestIDHeader, ids.RequestID)
		if ids.TraceID != "" {
			c.Header("X-Trace-Id", ids.TraceID)
		}
		c.Next()
	}
}
