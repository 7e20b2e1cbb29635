package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewMetaClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewMetaClient(NewSession("", ""), Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 Base.DisableKeepAlives=false")
	}
	if !tr.DisableKeepAlives {
		t.Fatalf("期望设置 Request.Close=true 的额外保险，但 DisableKeepAlives=false")
	}
}

func TestNewMetaClient_Defaults(t *testing.T) {
	c, err := NewMetaClient(NewSession("", ""), Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive，但 Base.DisableKeepAlives=true")
	}
	if tr.RetryMax != 0 {
		t.Fatalf("默认不应重试，实际 RetryMax=%d", tr.RetryMax)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", DefaultTimeout, c.Timeout)
	}
}

func TestNewImageClient_ImageProxySwitch(t *testing.T) {
	s := NewSession("", "")
	c1, err := NewImageClient(s, Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c1.Transport.(*Transport).Base.Proxy != nil {
		t.Fatalf("image_proxy=false 时不应走代理")
	}

	c2, err := NewImageClient(s, Options{ProxyURL: "http://127.0.0.1:8080", ImageProxy: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr2 := c2.Transport.(*Transport)
	if tr2.Base.Proxy == nil || !tr2.Base.DisableKeepAlives {
		t.Fatalf("image_proxy=true 时应走代理并禁用 keep-alive")
	}

	if _, err := NewImageClient(s, Options{ImageProxy: true}); err == nil {
		t.Fatalf("image_proxy=true 但未配置代理时应报错")
	}
}

func TestNewMetaClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewMetaClient(NewSession("", ""), Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestSession_HeadersAppliedAndImmutable(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	s := NewSession("", "")
	h := s.Header()
	h.Set("User-Agent", "tampered")

	c, err := NewMetaClient(s, Options{})
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	require.Equal(t, DefaultAcceptLanguage, got.Get("Accept-Language"))
}

func TestSession_ExplicitRequestHeaderWins(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewMetaClient(NewSession("clipmeta-test", ""), Options{})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit")
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "explicit", ua)
}

func TestTransport_RetryOnlyWhenEnabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// 前两次直接断开连接，制造传输错误。
		if atomic.LoadInt32(&calls) <= 2 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Errorf("不支持 Hijack")
				return
			}
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := &Transport{
		Base:         &http.Transport{DisableKeepAlives: true},
		Session:      NewSession("", ""),
		RetryMax:     2,
		RetryInitial: time.Millisecond,
	}
	c := &http.Client{Transport: tr}
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	tr.RetryMax = 0
	_, err = c.Get(srv.URL)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransport_NoRetryForPOST(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		_ = conn.Close()
	}))
	defer srv.Close()

	tr := &Transport{
		Base:         &http.Transport{DisableKeepAlives: true},
		RetryMax:     3,
		RetryInitial: time.Millisecond,
	}
	c := &http.Client{Transport: tr}
	_, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransport_NilBase(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test", nil)
	_, err := (&Transport{}).RoundTrip(req)
	if err == nil || !strings.Contains(err.Error(), "nil base transport") {
		t.Fatalf("期望 nil base transport 错误，实际：%v", err)
	}
}
