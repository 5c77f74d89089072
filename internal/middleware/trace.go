package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/propagation"
	"github.com/telchain/backend/internal/tracing"
)

// Trace creates the per-request tracing middleware: it extracts the inbound
// envelope, opens a SERVER span continuing (or rooting) the trace, and makes
// the span current on the request context. The span closes after the handler
// chain returns; 5xx responses mark it as failed.
func Trace(recorder *tracing.Recorder, logger *zap.Logger) gin.HandlerFunc {
	var prop propagation.HTTP
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if remote, ok := prop.Extract(c.Request.Header); ok {
			ctx = tracing.ContextWithRemote(ctx, remote)
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		name := fmt.Sprintf("http %s %s", strings.ToLower(c.Request.Method), route)

		ctx, span := recorder.Start(ctx, name, tracing.KindServer)
		span.Tag("http.method", c.Request.Method)
		span.Tag("http.route", route)
		span.Tag("http.target", c.Request.URL.RequestURI())
		span.Tag("http.host", c.Request.Host)

		c.Request = c.Request.WithContext(ctx)

		// Echo the trace identity so callers can locate the trace even
		// when the response body omits it.
		c.Header("X-Trace-Id", span.Context.TraceID)

		c.Next()

		status := c.Writer.Status()
		span.Tag("http.status_code", strconv.Itoa(status))
		if current, _ := span.Status(); current != tracing.StatusError {
			switch {
			case len(c.Errors) > 0:
				span.RecordError(c.Errors.Last())
			case status >= 500:
				span.RecordError(fmt.Errorf("request failed with status %d", status))
			}
		}
		span.End()
	}
}
