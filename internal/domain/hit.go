package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// HitFields 是搜索命中允许保留的字段（白名单）。其它字段一律丢弃，不得泄漏到输出。
var HitFields = []string{
	"title",
	"description",
	"publish_date",
	"model_username",
	"thumbnail_url",
	"content_url",
}

// RequiredHitFields 缺失任意一个即视为响应结构不符合预期。
var RequiredHitFields = []string{"title", "content_url", "publish_date"}

// SearchHit 是搜索索引返回的单条命中（已按白名单过滤）。
type SearchHit struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	PublishDate   EpochSeconds `json:"publish_date"`
	ModelUsername string       `json:"model_username"`
	ThumbnailURL  string       `json:"thumbnail_url"`
	ContentURL    string       `json:"content_url"`
}

// EpochSeconds 是 Unix 秒级时间戳。
// 搜索索引里的数值可能是整数、浮点数，偶尔也会是数字字符串，这里统一接受。
type EpochSeconds int64

func (e *EpochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("publish_date 为空")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("publish_date 不是合法时间戳：%q", string(b))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("publish_date 不是合法时间戳：%q", string(b))
	}
	*e = EpochSeconds(int64(f))
	return nil
}

// Time 返回 UTC 时间（渲染日期时统一按 UTC，保证输出与运行机器的时区无关）。
func (e EpochSeconds) Time() time.Time { return time.Unix(int64(e), 0).UTC() }

// Date 渲染为 YYYY-MM-DD。
func (e EpochSeconds) Date() string { return e.Time().Format(DateLayout) }
