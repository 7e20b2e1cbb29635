package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/clipmeta/internal/domain"
)

// Attempt 记录一次尝试（用于解释凭据来源的回退原因）。
// 注意：这是内部执行轨迹，只写日志，不进入 stdout 输出。
type Attempt struct {
	Source string // 来源名（小写）
	Stage  string // "fetch" / "parse" / "ok"
	Err    error  // nil when Stage=="ok"
}

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此区分“抓取失败”与“解析失败”，并写入日志。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse" 或 "thumbnail"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FetchParse 抓取并解析一个详情页。
//
// 返回值：
// - rec：成功解析的结构化元数据（SourceURL 固定为 pageURL）
// - html：抓取到的原始 HTML（便于调试落盘）
func FetchParse(ctx context.Context, p SceneProvider, pageURL string, c *http.Client) (rec domain.SceneRecord, html []byte, err error) {
	if p == nil {
		return domain.SceneRecord{}, nil, errors.New("provider 不能为空")
	}
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return domain.SceneRecord{}, nil, errors.New("pageURL 不能为空")
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))

	h, ferr := p.Fetch(ctx, pageURL, c)
	if ferr != nil {
		return domain.SceneRecord{}, nil, &Error{Provider: name, Stage: "fetch", Err: ferr}
	}

	r, perr := p.Parse(h, pageURL)
	if perr != nil {
		return domain.SceneRecord{}, h, &Error{Provider: name, Stage: "parse", Err: perr}
	}
	r.SourceURL = pageURL
	return r, h, nil
}

// CredentialChain 按顺序尝试多个凭据来源，第一个成功的胜出。
type CredentialChain []CredentialSource

// Resolve 返回凭据、最终成功的来源名，以及每一步的尝试轨迹。
// 全部失败时返回最后一个来源的错误（调用方据此判断“搜索路径不可继续”）。
func (ch CredentialChain) Resolve(ctx context.Context, c *http.Client) (creds domain.Credentials, used string, attempts []Attempt, err error) {
	var lastErr error
	for _, src := range ch {
		if src == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(src.Name()))
		cr, e := src.Credentials(ctx, c)
		if e == nil && !cr.Valid() {
			e = fmt.Errorf("来源 %q 返回了不完整的凭据", name)
		}
		if e != nil {
			lastErr = e
			attempts = append(attempts, Attempt{Source: name, Stage: "fetch", Err: e})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		attempts = append(attempts, Attempt{Source: name, Stage: "ok"})
		return cr, name, attempts, nil
	}
	if lastErr == nil {
		lastErr = errors.New("无可用凭据来源")
	}
	return domain.Credentials{}, "", attempts, lastErr
}

// StaticCredentials 是配置里给定的固定凭据（兜底来源）。
type StaticCredentials struct {
	Creds domain.Credentials
}

func (StaticCredentials) Name() string { return "config" }

func (s StaticCredentials) Credentials(context.Context, *http.Client) (domain.Credentials, error) {
	if !s.Creds.Valid() {
		return domain.Credentials{}, errors.New("配置中未提供完整的 search.app_id / search.api_key")
	}
	return s.Creds, nil
}
