package iwantclips

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/clipmeta/internal/domain"
	providerx "github.com/John-Robertt/clipmeta/internal/provider"
)

func TestParseCredentials(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want domain.Credentials
	}{
		{"单引号", `searchClient: algoliasearch('APPID123', 'APIKEY456')`, domain.Credentials{AppID: "APPID123", APIKey: "APIKEY456"}},
		{"双引号", `searchClient: algoliasearch("A1", "K1")`, domain.Credentials{AppID: "A1", APIKey: "K1"}},
		{"无前缀", `var c = algoliasearch('A2','K2');`, domain.Credentials{AppID: "A2", APIKey: "K2"}},
		{"内嵌引号", `searchClient: algoliasearch('A3', '"K3"')`, domain.Credentials{AppID: "A3", APIKey: "K3"}},
		{"多余参数", `searchClient: algoliasearch('A4', 'K4', {timeout: 2})`, domain.Credentials{AppID: "A4", APIKey: "K4"}},
		{"第一个有效匹配", `algoliasearch(appId) ... searchClient: algoliasearch('A5', 'K5') ... algoliasearch('A6', 'K6')`, domain.Credentials{AppID: "A5", APIKey: "K5"}},
		{"跳过变量参数的调用", `function mk(cfg) { return algoliasearch(cfg.appId, cfg.apiKey); } searchClient: algoliasearch('APPID123','APIKEY456')`, domain.Credentials{AppID: "APPID123", APIKey: "APIKEY456"}},
		{"前缀调用优先", `var legacy = algoliasearch('OLDAPP', 'OLDKEY'); searchClient: algoliasearch('NEWAPP', 'NEWKEY')`, domain.Credentials{AppID: "NEWAPP", APIKey: "NEWKEY"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCredentials([]byte(tc.in))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseCredentials_NotFound(t *testing.T) {
	for _, in := range []string{
		"",
		"<html><body>no search here</body></html>",
		`searchClient: algoliasearch('ONLYONE')`,
		`searchClient: algoliasearch('', '')`,
		`searchClient: algoliasearch(cfg.appId, cfg.apiKey)`,
		`searchClient: algoliasearch(appId, 'K1')`,
	} {
		_, err := ParseCredentials([]byte(in))
		if !errors.Is(err, ErrCredentialsNotFound) {
			t.Fatalf("期望 ErrCredentialsNotFound，实际：%v（in=%q）", err, in)
		}
	}
}

func TestDiscoverCredentials_FrontPage(t *testing.T) {
	page := loadFixture(t, "frontpage.html")
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	p := Provider{BaseURL: srv.URL + "/"}
	creds, err := p.DiscoverCredentials(context.Background(), srv.Client())
	require.NoError(t, err)
	require.Equal(t, domain.Credentials{AppID: "APPID123", APIKey: "APIKEY456"}, creds)
	require.Equal(t, "/", gotPath)
}

func TestDiscoverCredentials_Failures(t *testing.T) {
	t.Run("页面无凭据", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		_, err := Provider{BaseURL: srv.URL}.DiscoverCredentials(context.Background(), srv.Client())
		var ce *CredentialError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, err, ErrCredentialsNotFound)
	})

	t.Run("首页非 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := Provider{BaseURL: srv.URL}.DiscoverCredentials(context.Background(), srv.Client())
		var ce *CredentialError
		require.ErrorAs(t, err, &ce)
		var he *providerx.HTTPStatusError
		require.ErrorAs(t, err, &he)
		require.Equal(t, http.StatusBadGateway, he.StatusCode)
	})
}

func TestFrontPageCredentials_InChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	chain := providerx.CredentialChain{
		FrontPageCredentials{Provider: Provider{BaseURL: srv.URL}},
		providerx.StaticCredentials{Creds: domain.Credentials{AppID: "CFG", APIKey: "KEY"}},
	}
	creds, used, attempts, err := chain.Resolve(context.Background(), srv.Client())
	require.NoError(t, err)
	require.Equal(t, "config", used)
	require.Equal(t, "CFG", creds.AppID)
	require.Len(t, attempts, 2)
	require.ErrorIs(t, attempts[0].Err, ErrCredentialsNotFound)
}
