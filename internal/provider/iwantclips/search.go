package iwantclips

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/clipmeta/internal/domain"
	providerx "github.com/John-Robertt/clipmeta/internal/provider"
)

// 除 query 外固定不变的检索参数（与站点前端 instantsearch 发出的保持一致）。
const fixedSearchParams = "maxValuesPerFacet=20" +
	"&page=0" +
	"&highlightPreTag=__ais-highlight__" +
	"&highlightPostTag=__%2Fais-highlight__" +
	"&clickAnalytics=true" +
	"&facets=%5B%22categories%22%2C%22price%22%2C%22keywords%22%5D" +
	"&tagFilters="

// ResponseError 表示搜索响应的结构不符合预期（不是 JSON、缺少 results、命中缺少必需字段）。
type ResponseError struct {
	Reason string
	Err    error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("搜索响应不符合预期（%s）：%v", e.Reason, e.Err)
	}
	return fmt.Sprintf("搜索响应不符合预期（%s）", e.Reason)
}

func (e *ResponseError) Unwrap() error { return e.Err }

type queryRequest struct {
	IndexName string `json:"indexName"`
	Params    string `json:"params"`
}

type queriesPayload struct {
	Requests []queryRequest `json:"requests"`
}

type queriesResponse struct {
	Results []struct {
		Hits []map[string]json.RawMessage `json:"hits"`
	} `json:"results"`
}

// SearchParams 构造单次查询的 params 字符串（只查第一页）。
func SearchParams(query string) string {
	return "query=" + url.QueryEscape(query) + "&" + fixedSearchParams
}

// SearchURL 构造带认证参数的多索引查询地址。
func (p Provider) SearchURL(creds domain.Credentials) string {
	v := url.Values{}
	v.Set("x-algolia-agent", p.agent())
	v.Set("x-algolia-application-id", creds.AppID)
	v.Set("x-algolia-api-key", creds.APIKey)
	return p.endpoint(creds.AppID) + "/1/indexes/*/queries?" + v.Encode()
}

// Search 对搜索索引发起一次查询，返回按白名单过滤后的命中（顺序与服务端一致）。
func (p Provider) Search(ctx context.Context, c *http.Client, creds domain.Credentials, query string) ([]domain.SearchHit, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if !creds.Valid() {
		return nil, errors.New("搜索凭据不完整")
	}

	body, err := json.Marshal(queriesPayload{Requests: []queryRequest{{
		IndexName: p.indexName(),
		Params:    SearchParams(query),
	}}})
	if err != nil {
		return nil, err
	}

	u := p.SearchURL(creds)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{
			URL:        redactKey(u),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(b),
		}
	}
	return ReduceResponse(b)
}

// ReduceResponse 取第一个 result 的 hits，并把每条命中按白名单过滤后解码。
//
// 规则：
// - results 缺失或为空：结构错误
// - hits 缺失或为空：空列表（非 nil）
// - 任一命中缺少必需字段：整体失败，不输出部分结果
func ReduceResponse(b []byte) ([]domain.SearchHit, error) {
	var r queriesResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, &ResponseError{Reason: "json", Err: err}
	}
	if len(r.Results) == 0 {
		return nil, &ResponseError{Reason: "results 为空"}
	}

	hits := r.Results[0].Hits
	out := make([]domain.SearchHit, 0, len(hits))
	for i, raw := range hits {
		h, err := decodeHit(raw)
		if err != nil {
			return nil, &ResponseError{Reason: fmt.Sprintf("hits[%d]", i), Err: err}
		}
		out = append(out, h)
	}
	return out, nil
}

func decodeHit(raw map[string]json.RawMessage) (domain.SearchHit, error) {
	kept := make(map[string]json.RawMessage, len(domain.HitFields))
	for _, k := range domain.HitFields {
		if v, ok := raw[k]; ok {
			kept[k] = v
		}
	}
	for _, k := range domain.RequiredHitFields {
		v, ok := kept[k]
		if !ok || string(bytes.TrimSpace(v)) == "null" {
			return domain.SearchHit{}, fmt.Errorf("缺少字段 %s", k)
		}
	}
	b, err := json.Marshal(kept)
	if err != nil {
		return domain.SearchHit{}, err
	}
	var h domain.SearchHit
	if err := json.Unmarshal(b, &h); err != nil {
		return domain.SearchHit{}, err
	}
	return h, nil
}

func errorMessage(b []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &e) != nil {
		return ""
	}
	return strings.TrimSpace(e.Message)
}

// redactKey 避免 api key 出现在错误信息与日志里。
func redactKey(u string) string {
	pu, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := pu.Query()
	if q.Get("x-algolia-api-key") != "" {
		q.Set("x-algolia-api-key", "REDACTED")
		pu.RawQuery = q.Encode()
	}
	return pu.String()
}
