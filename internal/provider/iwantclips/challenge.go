package iwantclips

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// isChallenge 判断响应是不是 Cloudflare 的 JS 质询页。
// 质询页不含任何可用数据，只能视为拦截（不尝试绕过）。
func isChallenge(status int, h http.Header, body []byte) bool {
	if strings.EqualFold(strings.TrimSpace(h.Get("cf-mitigated")), "challenge") {
		return true
	}
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable && status != http.StatusOK {
		return false
	}
	if !bytes.Contains(body, []byte("cf-chl")) && !bytes.Contains(body, []byte("challenge-platform")) {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if strings.Contains(title, "just a moment") || strings.Contains(title, "attention required") {
		return true
	}
	return doc.Find("#challenge-form, #cf-challenge-running, form#challenge-form").Length() > 0
}
