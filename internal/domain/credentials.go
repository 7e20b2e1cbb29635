package domain

import "strings"

// Credentials 是托管搜索服务（Algolia）的应用 ID 与 API key。
// 每次搜索都重新发现，不落盘、不缓存、不跟踪过期。
type Credentials struct {
	AppID  string
	APIKey string
}

// Valid 要求两个字段都非空（去空白后）。
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.APIKey) != ""
}
