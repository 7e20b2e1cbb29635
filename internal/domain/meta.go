package domain

// SceneRecord 是 clip 详情页解析得到的结构化元数据（规范记录）。
//
// 约束：
// - Date 必须是 ISO 日期（YYYY-MM-DD）；解析不出日期时整条记录失败，不做兜底
// - Studio 同时作为唯一的 performer（页面只暴露一个可归属身份）
// - RawTags 保留“分类 + 话题标签”拼接后的原始串，拆分在规范化阶段完成（见 SplitTags）
type SceneRecord struct {
	Title       string
	Description string
	Date        string // ISO date, e.g. "2023-01-05"
	Studio      string

	ThumbnailURL string
	RawTags      string

	SourceURL string
}
