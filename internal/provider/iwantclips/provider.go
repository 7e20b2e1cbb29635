package iwantclips

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	providerx "github.com/John-Robertt/clipmeta/internal/provider"
)

const (
	DefaultBaseURL  = "https://iwantclips.com"
	DefaultIndex    = "prod_content"
	DefaultEndpoint = "https://{app}-dsn.algolia.net"
	DefaultAgent    = "Algolia for JavaScript (3.33.0); Browser (lite); instantsearch.js (3.4.0); JS Helper 2.26.1"
)

// Provider 实现 IWantClips 的凭据发现、搜索、详情页抓取与解析。
//
// 约束：
// - 所有网络动作都用调用方传入的 http.Client（header/代理/超时由 httpx 统一实现）
// - Parse / ParseCredentials 是纯函数，便于用 testdata 固定样本测试
type Provider struct {
	// BaseURL 是站点根地址，凭据从这里的首页脚本中提取。为空时用 DefaultBaseURL。
	BaseURL string

	// SearchEndpoint 是搜索服务地址模板，{app} 会被替换为 app id。为空时用 DefaultEndpoint。
	SearchEndpoint string

	// IndexName 为空时用 DefaultIndex。
	IndexName string

	// Agent 是 x-algolia-agent 参数。为空时用 DefaultAgent。
	Agent string
}

func (Provider) Name() string { return "iwantclips" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) endpoint(appID string) string {
	e := strings.TrimSpace(p.SearchEndpoint)
	if e == "" {
		e = DefaultEndpoint
	}
	e = strings.ReplaceAll(e, "{app}", strings.ToLower(appID))
	return strings.TrimRight(e, "/")
}

func (p Provider) indexName() string {
	if s := strings.TrimSpace(p.IndexName); s != "" {
		return s
	}
	return DefaultIndex
}

func (p Provider) agent() string {
	if s := strings.TrimSpace(p.Agent); s != "" {
		return s
	}
	return DefaultAgent
}

// 编译期检查：Provider 覆盖调度层需要的全部能力。
var (
	_ providerx.SceneProvider     = Provider{}
	_ providerx.Searcher          = Provider{}
	_ providerx.ThumbnailResolver = Provider{}
)

// getBody 发起 GET 并返回完整响应体；非 2xx 统一转成 HTTPStatusError。
func getBody(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isChallenge(resp.StatusCode, resp.Header, b) {
			return nil, &providerx.BlockedError{URL: u, Reason: "cloudflare-challenge"}
		}
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	if err != nil {
		return nil, err
	}
	if isChallenge(resp.StatusCode, resp.Header, b) {
		return nil, &providerx.BlockedError{URL: u, Reason: "cloudflare-challenge"}
	}
	return b, nil
}
