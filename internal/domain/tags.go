package domain

import "strings"

// TagNotApplicable 是页面用来表示“无分类/无标签”的占位值，不能出现在最终标签里。
const TagNotApplicable = "N/A"

// SplitTags 把逗号分隔的标签串拆成有序标签列表。
//
// 规则：
// - 去掉前后空白后等于 "N/A" 的 token 丢弃
// - 其余 token 去空白、去掉结尾的 '.'；结果为空（或变成 "N/A"）则丢弃
// - 保持输入顺序，不去重（页面上重复出现的标签原样保留）
func SplitTags(raw string) []string {
	out := make([]string, 0, 8)
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == TagNotApplicable {
			continue
		}
		tok = strings.TrimSpace(strings.TrimRight(tok, "."))
		if tok == "" || tok == TagNotApplicable {
			continue
		}
		out = append(out, tok)
	}
	return out
}
