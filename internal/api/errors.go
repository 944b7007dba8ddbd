package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"MatchPoster/internal/adapter/proxy"
	"MatchPoster/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorResponse 统一错误响应，字段与 proxy 后端协议一致
func errorResponse(msg, code string, retryAfter int) proxy.Result {
	return proxy.Result{Success: false, Error: msg, Code: code, RetryAfterSeconds: retryAfter}
}

// writeError 把领域错误映射为 HTTP 状态码与错误码
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	status, body := resolveError(c, logger, err)
	c.AbortWithStatusJSON(status, body)
}

// resolveError 计算状态码与错误体，并记录日志；限流时设置 Retry-After
func resolveError(c *gin.Context, logger *logrus.Logger, err error) (int, proxy.Result) {
	status, code := http.StatusInternalServerError, "internal"
	msg := err.Error()
	retryAfter := 0

	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, model.ErrNoOwner):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrPosterNotFound), errors.Is(err, model.ErrBlobNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrContentRejected):
		status, code = http.StatusUnprocessableEntity, proxy.CodeContentRejected
		msg = model.ErrContentRejected.Error()
	case errors.Is(err, model.ErrRateLimited):
		status, code = http.StatusTooManyRequests, proxy.CodeRateLimited
		if hint, ok := model.RetryHint(err); ok {
			retryAfter = int(math.Ceil(hint.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
		}
	case errors.Is(err, model.ErrBackendNotConfigured):
		status, code = http.StatusServiceUnavailable, "backend_not_configured"
	case errors.Is(err, model.ErrNoSurface):
		code = "no_surface"
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("请求处理失败")
	} else {
		entry.Info("请求被拒绝")
	}
	return status, errorResponse(msg, code, retryAfter)
}
