package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited 上游限流，可在有限次数内重试
	ErrRateLimited = errors.New("rate limited by image service")
	// ErrContentRejected 内容安全拦截，重试无意义
	ErrContentRejected = errors.New("content blocked by safety filters, try a different style")
	// ErrAssetUnavailable 图片素材加载失败，只在合成引擎内部使用
	ErrAssetUnavailable = errors.New("asset unavailable")
	// ErrPosterNotFound 海报记录不存在
	ErrPosterNotFound = errors.New("poster not found")
	// ErrForbidden 记录不属于当前用户
	ErrForbidden = errors.New("poster belongs to another owner")
	// ErrNoOwner 上下文中没有调用方身份
	ErrNoOwner = errors.New("no owner id available")
	// ErrNoSurface 无法分配绘图画布
	ErrNoSurface = errors.New("drawing surface unavailable")
	// ErrBackendNotConfigured 生成服务凭证缺失
	ErrBackendNotConfigured = errors.New("image service credential not configured")
	// ErrBlobNotFound Blob 已不存在
	ErrBlobNotFound = errors.New("blob not found")
	// ErrQueryUnsupported 存储引擎无法执行该查询（如 Firestore 缺少复合索引）
	ErrQueryUnsupported = errors.New("query not supported by store")
	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("invalid request")
)

// UpstreamError 生成服务返回的结构化错误
type UpstreamError struct {
	Kind       error         // ErrRateLimited / ErrContentRejected / nil
	StatusCode int           // HTTP 状态码，未知为 0
	RetryAfter time.Duration // 上游给出的重试等待时间，0 表示未给出
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("image service error (%d): %s", e.StatusCode, e.Message)
	}
	return "image service error: " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Kind }

// RetryHint 从错误链中取出上游给出的重试等待时间
func RetryHint(err error) (time.Duration, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.RetryAfter > 0 {
		return ue.RetryAfter, true
	}
	return 0, false
}
