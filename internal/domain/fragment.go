package domain

import "strings"

// DateLayout 是对外输出统一使用的日期格式。
const DateLayout = "2006-01-02"

// Fragment 是调用方（媒体库的脚本刮削器宿主）经 stdin 传入的请求对象。
// 用指针区分“缺失”与“空串”：只有缺失的 key 才算没有提供。
type Fragment struct {
	URL   *string `json:"url,omitempty"`
	Title *string `json:"title,omitempty"`
	Name  *string `json:"name,omitempty"`
}

func (f Fragment) HasURL() bool   { return f.URL != nil }
func (f Fragment) HasTitle() bool { return f.Title != nil }
func (f Fragment) HasName() bool  { return f.Name != nil }

// Empty 表示三个 key 都缺失。
func (f Fragment) Empty() bool { return !f.HasURL() && !f.HasTitle() && !f.HasName() }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (f Fragment) URLValue() string   { return deref(f.URL) }
func (f Fragment) TitleValue() string { return deref(f.Title) }
func (f Fragment) NameValue() string  { return deref(f.Name) }
