package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/BaSui01/guardflow/types"
)

// MapHTTPError 将 HTTP 状态码映射为带重试标记的 types.Error
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var e *types.Error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		e = types.NewError(types.ErrTransport, msg)
	case http.StatusTooManyRequests:
		e = types.NewError(types.ErrRateLimit, msg).WithRetryable(true)
	case http.StatusBadRequest:
		// 部分服务商用 400 表示额度耗尽
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			e = types.NewError(types.ErrRateLimit, msg)
		} else {
			e = types.NewError(types.ErrTransport, msg)
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		e = types.NewError(types.ErrUpstreamTimeout, msg).WithRetryable(true)
	case http.StatusServiceUnavailable, http.StatusBadGateway, 529:
		e = types.NewError(types.ErrServiceUnavailable, msg).WithRetryable(true)
	default:
		e = types.NewError(types.ErrTransport, msg).WithRetryable(status >= 500)
	}
	return e.WithProvider(provider)
}

// ClassifyError 将后端返回的任意错误归一为 *types.Error。
// 已是 *types.Error 的原样返回；status 为 0 表示未知状态码。
func ClassifyError(provider string, status int, err error) *types.Error {
	if err == nil {
		return nil
	}
	if e, ok := types.AsError(err); ok {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled):
		return types.NewError(types.ErrSessionCancelled, "request cancelled").WithProvider(provider).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrUpstreamTimeout, "request timed out").
			WithProvider(provider).WithRetryable(true).WithCause(err)
	}
	if status > 0 {
		return MapHTTPError(status, fmt.Sprintf("%s returned HTTP %d", provider, status), provider).WithCause(err)
	}
	return types.NewTransportError(provider, err)
}
