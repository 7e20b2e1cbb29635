package provider

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点（或搜索服务）返回了非 2xx 的 HTTP 状态码。
// Message 来自响应体里的错误说明（搜索服务会返回 {"message": ...}），可能为空。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	if loc := strings.TrimSpace(e.Location); loc != "" {
		b.WriteString(" location=" + loc)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": " + msg)
	}
	return b.String()
}

// BlockedError 表示请求被站点引导到了“验证/拦截”页面（通常是 Cloudflare 的 JS 质询）。
// 产品约束：不尝试绕过，直接视为失败，提示用户配置代理或稍后重试。
type BlockedError struct {
	URL    string
	Reason string // 例如 "cloudflare-challenge"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}
