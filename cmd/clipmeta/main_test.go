package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrontPage = `<html><body><script>
const search = instantsearch({
  indexName: 'prod_content',
  searchClient: algoliasearch('APPID123', 'APIKEY456'),
});
</script></body></html>`

const testSearchResponse = `{"results":[{"hits":[{
  "title":"Yoga Flow","description":"desc","publish_date":1700000000,
  "model_username":"alice","thumbnail_url":"http://x/a.jpg","content_url":"http://x/scene/1",
  "price":4.99
}]}]}`

const testScenePage = `<html><body>
<video class="video-js embed-responsive-item" poster="/thumbs/1.gif"></video>
<div class="col-md-12 col-sm-12 col-xs-12 title"><span>Yoga Flow</span></div>
<div class="modelName"><a href="/store/alice">alice</a></div>
<div class="col-xs-12 date fix"><span>Published Jan 5, 2023</span></div>
<div class="col-xs-12 description fix"><span>Stretch<br>together.</span></div>
<div class="col-xs-12 category fix"><span>Fitness</span></div>
<div class="col-xs-12 hashtags fix"><span>#yoga</span></div>
</body></html>`

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = io.WriteString(w, testFrontPage)
		case "/algolia/1/indexes/*/queries":
			_, _ = io.WriteString(w, testSearchResponse)
		case "/store/1/yoga-flow":
			_, _ = io.WriteString(w, testScenePage)
		case "/thumbs/1.jpg":
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clipmeta.toml")
	body := `base_url = "` + srv.URL + `"
timeout = "5s"

[search]
endpoint = "` + srv.URL + `/algolia"

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	return p
}

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestCLI_SearchByName_StdoutIsExactJSON(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, `{"name":"yoga"}`, "--config", cfg)
	require.Equal(t, exitOK, code, "stderr=%s", stderr)

	want := `[
    {
        "title": "Yoga Flow",
        "details": "desc",
        "url": "http://x/scene/1",
        "date": "2023-11-14",
        "image": "http://x/a.jpg",
        "studio": {
            "name": "alice"
        }
    }
]
`
	assert.Equal(t, want, stdout)
	assert.Contains(t, stderr, `"run_id"`)
	assert.Contains(t, stderr, `"phase":"credentials"`)
}

func TestCLI_SceneByURL(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, `{"url":"`+srv.URL+`/store/1/yoga-flow"}`, "--config", cfg)
	require.Equal(t, exitOK, code, "stderr=%s", stderr)

	assert.True(t, strings.HasPrefix(stdout, "{\n    \"title\": \"Yoga Flow\",\n"), "stdout=%s", stdout)
	assert.Contains(t, stdout, `"image": "`+srv.URL+`/thumbs/1.jpg"`)
	assert.Contains(t, stdout, `"date": "2023-01-05"`)
	assert.Contains(t, stdout, `"details": "Stretch\ntogether."`)
}

func TestCLI_SceneAndSearchSubcommands(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, "", "--config", cfg, "scene", srv.URL+"/store/1/yoga-flow")
	require.Equal(t, exitOK, code, "stderr=%s", stderr)
	assert.Contains(t, stdout, `"title": "Yoga Flow"`)

	code, stdout, stderr = runCLI(t, "", "--config", cfg, "search", "yoga", "flow")
	require.Equal(t, exitOK, code, "stderr=%s", stderr)
	assert.True(t, strings.HasPrefix(stdout, "[\n"), "stdout=%s", stdout)
	assert.Contains(t, stderr, `"target":"yoga flow"`)
}

func TestCLI_EmptyRequest_ConfigMissing(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, `{}`, "--config", cfg)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"error_code":"config_missing"`)
}

func TestCLI_TitleOnly_NoOutput(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, `{"title":"Yoga Flow"}`, "--config", cfg)
	assert.Equal(t, exitOK, code, "stderr=%s", stderr)
	assert.Empty(t, stdout)
}

func TestCLI_InvalidJSON(t *testing.T) {
	srv := newTestSite(t)
	cfg := writeTestConfig(t, srv)

	code, stdout, stderr := runCLI(t, `{"url":`, "--config", cfg)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, `"error_code":"decode_failed"`)
}

func TestCLI_ConfigFileMissing(t *testing.T) {
	code, stdout, stderr := runCLI(t, `{"name":"x"}`, "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "config_not_found")
}

func TestCLI_UsageErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{name: "未知参数", args: []string{"--nope"}},
		{name: "多余位置参数", args: []string{"extra"}},
		{name: "scene 缺少 url", args: []string{"scene"}},
		{name: "search 缺少关键词", args: []string{"search"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, "", tc.args...)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "参数错误")
			assert.Contains(t, stderr, "Usage:")
		})
	}
}

func TestCLI_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "clipmeta "+version+"\n", stdout)
}
