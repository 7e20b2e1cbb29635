package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultTimeout        = 20 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
	DefaultAcceptLanguage = "en-US,en;q=0.8"

	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMaxWait = 5 * time.Second
)

// Session 是进程级的请求头集合：构造后只读，所有出站请求共享。
// 站点前面有 Cloudflare，固定一个浏览器 UA 才能拿到正常页面。
type Session struct {
	header http.Header
}

// NewSession 构造会话头；空值回退到默认值。
func NewSession(userAgent, acceptLanguage string) Session {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	al := strings.TrimSpace(acceptLanguage)
	if al == "" {
		al = DefaultAcceptLanguage
	}
	h := http.Header{}
	h.Set("User-Agent", ua)
	h.Set("Accept-Language", al)
	return Session{header: h}
}

// Header 返回会话头的副本（修改副本不影响会话）。
func (s Session) Header() http.Header { return s.header.Clone() }

// apply 只补齐请求上缺失的头，调用方显式设置的值优先。
func (s Session) apply(r *http.Request) {
	for k, vs := range s.header {
		if r.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
}

// Options 是 client 的网络策略。零值可用：直连、默认超时、不重试。
type Options struct {
	ProxyURL   string
	ImageProxy bool
	Timeout    time.Duration

	// RetryMax 表示最大重试次数（不含首次尝试）。默认 0：每个请求只发一次。
	RetryMax int
}

// Transport 把“会话头 + 代理 + keep-alive 策略 + 可选的有界重试”固化为统一策略。
//
// provider 只负责“定位页面 + 解析 HTML”，不关心网络策略细节。
type Transport struct {
	Base    *http.Transport
	Session Session

	RetryMax int

	// RetryInitial 是首次重试前的等待时间（指数退避的起点）。
	RetryInitial time.Duration

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	once := func() (*http.Response, error) {
		r := req.Clone(req.Context())
		if t.Session.header != nil {
			t.Session.apply(r)
		}
		if t.DisableKeepAlives {
			r.Close = true
		}
		return t.Base.RoundTrip(r)
	}
	if max == 0 {
		return once()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.RetryInitial
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = defaultRetryInitial
	}
	bo.MaxInterval = defaultRetryMaxWait

	op := func() (*http.Response, error) {
		resp, err := once()
		if err != nil && req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误。
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}
	return backoff.Retry(req.Context(), op, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(max+1)))
}

// NewMetaClient 构造用于页面抓取与搜索请求的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 所有请求带会话头
// - 总超时；重试默认关闭
func NewMetaClient(s Session, o Options) (*http.Client, error) {
	return newClient(s, strings.TrimSpace(o.ProxyURL), o)
}

// NewImageClient 构造用于缩略图探测的 HTTP client。
//
// 规则：
// - ImageProxy=false：图片直连（忽略 ProxyURL）
// - ImageProxy=true：图片走 ProxyURL，且禁用 keep-alive
func NewImageClient(s Session, o Options) (*http.Client, error) {
	if !o.ImageProxy {
		return newClient(s, "", o)
	}
	proxyURL := strings.TrimSpace(o.ProxyURL)
	if proxyURL == "" {
		return nil, errors.New("image_proxy=true 但 proxy.url 为空")
	}
	return newClient(s, proxyURL, o)
}

func newClient(s Session, proxyURL string, o Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := &Transport{
		Base:              base,
		Session:           s,
		RetryMax:          o.RetryMax,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
