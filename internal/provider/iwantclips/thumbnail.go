package iwantclips

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// StillCandidate 返回动图 poster 对应的静态图地址（.gif -> .jpg）。
// 不是 .gif 时 ok=false。
func StillCandidate(posterURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(posterURL))
	if err != nil || u.Path == "" {
		return "", false
	}
	ext := path.Ext(u.Path)
	if !strings.EqualFold(ext, ".gif") {
		return "", false
	}
	u.Path = strings.TrimSuffix(u.Path, ext) + ".jpg"
	u.RawPath = ""
	return u.String(), true
}

// ResolveThumbnail 在动图 poster 与同名静态图之间做选择：
// 静态图返回 404 时保留原图；其它任何状态码都使用静态图（与站点一贯行为一致）。
// 网络错误直接返回，不做回退。
func (Provider) ResolveThumbnail(ctx context.Context, c *http.Client, posterURL string) (string, error) {
	posterURL = strings.TrimSpace(posterURL)
	still, ok := StillCandidate(posterURL)
	if !ok {
		return posterURL, nil
	}
	if c == nil {
		return "", errors.New("http client 不能为空")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, still, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusNotFound {
		return posterURL, nil
	}
	return still, nil
}
