package stash

import (
	"bytes"
	"encoding/json"

	"github.com/John-Robertt/clipmeta/internal/domain"
)

// Studio / Named 对应媒体库刮削协议里的 {"name": ...} 对象。
// studio 永远是对象，即使名字为空也不能输出裸字符串或 null。
type Studio struct {
	Name string `json:"name"`
}

type Named struct {
	Name string `json:"name"`
}

// SearchResult 是搜索路径的单条输出。
type SearchResult struct {
	Title   string `json:"title"`
	Details string `json:"details"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Image   string `json:"image"`
	Studio  Studio `json:"studio"`
}

// Scene 是详情页路径的输出。
type Scene struct {
	Title      string  `json:"title"`
	Tags       []Named `json:"tags"`
	URL        string  `json:"url"`
	Image      string  `json:"image"`
	Studio     Studio  `json:"studio"`
	Performers []Named `json:"performers"`
	Details    string  `json:"details"`
	Date       string  `json:"date"`
}

// NormalizeSearchHits 把搜索命中转成输出列表。
//
// 规则：
// - 保持命中顺序
// - 空输入返回空列表（非 nil，编码为 []）
// - 日期由 Unix 秒按 UTC 渲染为 YYYY-MM-DD
func NormalizeSearchHits(hits []domain.SearchHit) []SearchResult {
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchResult{
			Title:   h.Title,
			Details: h.Description,
			URL:     h.ContentURL,
			Date:    h.PublishDate.Date(),
			Image:   h.ThumbnailURL,
			Studio:  Studio{Name: h.ModelUsername},
		})
	}
	return out
}

// NormalizeScene 把详情页记录转成输出对象。
// performers 固定为只含 studio 的单元素列表；studio 为空时也保持 [{"name": ""}]。
func NormalizeScene(rec domain.SceneRecord) Scene {
	tags := domain.SplitTags(rec.RawTags)
	tagObjs := make([]Named, 0, len(tags))
	for _, t := range tags {
		tagObjs = append(tagObjs, Named{Name: t})
	}

	return Scene{
		Title:      rec.Title,
		Tags:       tagObjs,
		URL:        rec.SourceURL,
		Image:      rec.ThumbnailURL,
		Studio:     Studio{Name: rec.Studio},
		Performers: []Named{{Name: rec.Studio}},
		Details:    rec.Description,
		Date:       rec.Date,
	}
}

// Encode 输出宿主读取的 JSON 文档：4 空格缩进，不转义 HTML 字符，结尾带换行。
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
