// Package response 统一 HTTP 响应格式与业务错误到状态码的映射
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// ErrorBody 错误响应体
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success 200 响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created 201 响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// NoContent 204 响应
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ErrorWithStatus 以指定状态码返回错误
func ErrorWithStatus(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Code: code, Message: message})
}

// Error 将错误映射为状态码与错误体；内部错误不向调用方暴露细节
func Error(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status := StatusOf(err)

	e, ok := errorx.As(err)
	if !ok || e.Kind == errorx.KindInternal {
		logger.Error(ctx, "Request failed", "path", c.FullPath(), "error", err)
		ErrorWithStatus(c, status, "internal", "internal server error")
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "Request failed", "path", c.FullPath(), "code", e.Code, "error", err)
	} else {
		logger.Debug(ctx, "Request rejected", "path", c.FullPath(), "code", e.Code, "error", err)
	}
	ErrorWithStatus(c, status, e.Code, e.Message)
}

// StatusOf 业务错误类别对应的 HTTP 状态码
func StatusOf(err error) int {
	switch errorx.KindOf(err) {
	case errorx.KindValidation:
		return http.StatusBadRequest
	case errorx.KindUnauthenticated:
		return http.StatusUnauthorized
	case errorx.KindAuthorization:
		return http.StatusForbidden
	case errorx.KindNotFound:
		return http.StatusNotFound
	case errorx.KindConflict:
		return http.StatusConflict
	case errorx.KindExternalRejected:
		return http.StatusBadGateway
	case errorx.KindExternalTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// BindError 请求体或参数校验失败
func BindError(c *gin.Context, err error) {
	ErrorWithStatus(c, http.StatusBadRequest, "invalid_request", err.Error())
}
