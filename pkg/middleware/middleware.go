// Package middleware 提供 Gin 通用中间件（日志、panic recover、CORS、会话鉴权、限流）
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/response"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// GinLoggingMiddleware 记录请求日志并采集 HTTP 指标
func GinLoggingMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		// 使用 c.Request.Context()，以便带上鉴权中间件写入的 user_id
		logger.Info(c.Request.Context(), "HTTP request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"response_size", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"duration", elapsed,
		)
	}
}

// GinRecoveryMiddleware panic 恢复
func GinRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "HTTP request panicked", "panic", err)
				response.ErrorWithStatus(c, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		c.Next()
	}
}

// GinCORSMiddleware CORS，未配置来源时仅允许同源
func GinCORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = allowedOrigins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(cfg)
}

// SessionParser 会话令牌解析
type SessionParser interface {
	Parse(token string) (auth.Session, error)
}

// Authenticate 从 Authorization 头或会话 cookie 中解析会话，失败返回 401
func Authenticate(parser SessionParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}

		session, err := parser.Parse(token)
		if err != nil {
			response.Error(c, errorx.Unauthenticated("sign in to continue"))
			return
		}

		ctx := auth.WithSession(c.Request.Context(), session)
		ctx = logger.ContextWithUserID(ctx, session.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
