package iwantclips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/clipmeta/internal/domain"
)

// 详情页各区域的选择器。页面改版时只需要改这里。
const (
	selTitle       = "div.col-md-12.col-sm-12.col-xs-12.title span"
	selDescription = "div.col-xs-12.description.fix span"
	selDate        = "div.col-xs-12.date.fix span"
	selStudio      = "div.modelName a"
	selVideo       = "video.video-js.embed-responsive-item"
	selCategory    = "div.col-xs-12.category.fix span"
	selHashtags    = "div.col-xs-12.hashtags.fix span"

	// 页面上的发布日期形如 "Published Jan 5, 2023"。
	pageDateLayout = "Jan 2, 2006"
)

// MarkupError 表示详情页缺少必需的区域（页面结构与预期不符）。
type MarkupError struct {
	Region   string
	Selector string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("页面结构不符合预期：缺少 %s（%s）", e.Region, e.Selector)
}

// DateFormatError 表示日期文本无法按 "Jan 2, 2006" 解析。
type DateFormatError struct {
	Text string
	Err  error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("无法解析发布日期 %q：%v", e.Text, e.Err)
}

func (e *DateFormatError) Unwrap() error { return e.Err }

var reManyNewlines = regexp.MustCompile(`\n{3,}`)

// Fetch 抓取详情页 HTML。
func (p Provider) Fetch(ctx context.Context, pageURL string, c *http.Client) ([]byte, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, errors.New("pageURL 不能为空")
	}
	return getBody(ctx, c, pageURL)
}

// Parse 把详情页 HTML 解析为 SceneRecord。
// 缩略图只给出页面上的 poster 原值（相对地址按 pageURL 补全），静态图探测由 ResolveThumbnail 完成。
func (Provider) Parse(b []byte, pageURL string) (domain.SceneRecord, error) {
	if len(b) == 0 {
		return domain.SceneRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return domain.SceneRecord{}, err
	}

	titleSel, err := region(doc, "title", selTitle)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	descSel, err := region(doc, "description", selDescription)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	dateSel, err := region(doc, "date", selDate)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	studioSel, err := region(doc, "studio", selStudio)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	videoSel, err := region(doc, "poster", selVideo)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	poster, ok := videoSel.Attr("poster")
	if !ok || strings.TrimSpace(poster) == "" {
		return domain.SceneRecord{}, &MarkupError{Region: "poster", Selector: selVideo + "[poster]"}
	}
	catSel, err := region(doc, "category", selCategory)
	if err != nil {
		return domain.SceneRecord{}, err
	}
	tagSel, err := region(doc, "hashtags", selHashtags)
	if err != nil {
		return domain.SceneRecord{}, err
	}

	date, err := parsePageDate(dateSel.Text())
	if err != nil {
		return domain.SceneRecord{}, err
	}

	return domain.SceneRecord{
		Title:        strings.TrimSpace(titleSel.Text()),
		Description:  description(descSel),
		Date:         date,
		Studio:       strings.TrimSpace(studioSel.Text()),
		ThumbnailURL: resolveURL(pageURL, poster),
		RawTags:      joinTags(catSel.Text(), tagSel.Text()),
		SourceURL:    strings.TrimSpace(pageURL),
	}, nil
}

func region(doc *goquery.Document, name, sel string) (*goquery.Selection, error) {
	s := doc.Find(sel).First()
	if s.Length() == 0 {
		return nil, &MarkupError{Region: name, Selector: sel}
	}
	return s, nil
}

// description 把 <br> 还原为换行，再压缩空白：
// 双空格变单空格；连续 3 个以上换行折叠为 2 个；每行去首尾空白。
func description(s *goquery.Selection) string {
	s = s.Clone()
	s.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: "\n"})
	})
	text := strings.ReplaceAll(s.Text(), "  ", " ")
	text = reManyNewlines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

func parsePageDate(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "Published ", "")
	s = strings.Join(strings.Fields(s), " ")
	t, err := time.Parse(pageDateLayout, s)
	if err != nil {
		return "", &DateFormatError{Text: strings.TrimSpace(raw), Err: err}
	}
	return t.Format(domain.DateLayout), nil
}

// joinTags 合并分类与话题标签为 "分类, 话题" 形式的原始标签串（拆分在归一化阶段完成）。
func joinTags(category, hashtags string) string {
	tags := strings.TrimSpace(category) + ", " + strings.TrimSpace(hashtags)
	tags = strings.ReplaceAll(tags, "\n", " ")
	return strings.TrimRight(tags, ",")
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
