package iwantclips

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/John-Robertt/clipmeta/internal/domain"
)

// ErrCredentialsNotFound 表示首页脚本里没有可用的 algoliasearch(appId, apiKey) 调用。
var ErrCredentialsNotFound = errors.New("首页中未找到搜索服务凭据")

// CredentialError 是凭据发现阶段的失败（抓取失败或提取失败）。
type CredentialError struct {
	URL string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("凭据发现失败 url=%s: %v", e.URL, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// 页面里写作 `searchClient: algoliasearch('APP', 'KEY')`。
// 只接受两个字符串字面量参数；变量形式的调用（包装函数等）不是凭据。
var reAlgoliaCall = regexp.MustCompile(`(searchClient:\s*)?algoliasearch\(\s*('[^']*'|"[^"]*")\s*,\s*('[^']*'|"[^"]*")`)

// DiscoverCredentials 抓取站点首页并从内联脚本里提取 app id / api key。
func (p Provider) DiscoverCredentials(ctx context.Context, c *http.Client) (domain.Credentials, error) {
	u := p.baseURL()
	b, err := getBody(ctx, c, u)
	if err != nil {
		return domain.Credentials{}, &CredentialError{URL: u, Err: err}
	}
	creds, err := ParseCredentials(b)
	if err != nil {
		return domain.Credentials{}, &CredentialError{URL: u, Err: err}
	}
	return creds, nil
}

// ParseCredentials 从页面文本中提取凭据。
// 优先取 searchClient: 前缀的调用；没有时才退回到第一个无前缀的字面量调用。
func ParseCredentials(html []byte) (domain.Credentials, error) {
	var fallback *domain.Credentials
	for _, m := range reAlgoliaCall.FindAllSubmatch(html, -1) {
		creds := domain.Credentials{AppID: cleanLiteral(string(m[2])), APIKey: cleanLiteral(string(m[3]))}
		if !creds.Valid() {
			continue
		}
		if len(m[1]) > 0 {
			return creds, nil
		}
		if fallback == nil {
			fallback = &creds
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return domain.Credentials{}, ErrCredentialsNotFound
}

// cleanLiteral 去掉外层引号以及字面量里残留的引号。
func cleanLiteral(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.NewReplacer(`"`, "", `'`, "").Replace(s)
	return strings.TrimSpace(s)
}

// FrontPageCredentials 把首页发现包装成 provider.CredentialSource。
type FrontPageCredentials struct {
	Provider Provider
}

func (FrontPageCredentials) Name() string { return "frontpage" }

func (s FrontPageCredentials) Credentials(ctx context.Context, c *http.Client) (domain.Credentials, error) {
	return s.Provider.DiscoverCredentials(ctx, c)
}
