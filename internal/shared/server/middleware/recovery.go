package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"script-backend/internal/shared/server/respond"
	"script-backend/internal/shared/telemetry"
)

const maxStackBytes = 8 << 10

// Recovery logs a handler panic and answers 500 unless the handler already
// started writing, in which case the connection is just aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			if len(stack) > maxStackBytes {
				stack = stack[:maxStackBytes]
			}
			telemetry.ErrorCtx(c.Request.Context(), "http.panic", map[string]any{
				"request_id":  RequestIDFromContext(c),
				"error":       fmt.Sprint(rec),
				"stack":       string(stack),
				"route":       c.FullPath(),
				"method":      c.Request.Method,
				"analysis_id": c.Param("id"),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
