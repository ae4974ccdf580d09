package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"artifactvault/pkg/remote"
	"artifactvault/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// =============================================================================
// 1. Request ID
// =============================================================================

// RequestID 为每个请求分配追踪 ID，客户端已带 X-Request-ID 时沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = types.NewUUID().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// =============================================================================
// 2. Logging (结构化日志)
// =============================================================================

// Logging 按响应状态选择日志级别：5xx 为 Error，4xx 为 Warn
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("err", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// =============================================================================
// 3. Recovery (防弹衣)
// =============================================================================

// Recovery 捕获 Panic，返回 500 而不是断开连接
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("🔥 PANIC RECOVERED",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
				abort(c, http.StatusInternalServerError, fmt.Errorf("internal server error: panic recovered"))
			}
		}()
		c.Next()
	}
}

// =============================================================================
// 4. Auth
// =============================================================================

// BearerAuth 在 token 非空时要求 Authorization: Bearer <token>
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abort(c, http.StatusUnauthorized, fmt.Errorf("missing or invalid bearer token"))
			return
		}
		c.Next()
	}
}

// abort 写入统一的错误响应体 {"message": "..."}
func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, remote.ErrorResponse{Message: err.Error()})
}
