package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/John-Robertt/clipmeta/internal/config"
	"github.com/John-Robertt/clipmeta/internal/domain"
	"github.com/John-Robertt/clipmeta/internal/infra/httpx"
	"github.com/John-Robertt/clipmeta/internal/logging"
	"github.com/John-Robertt/clipmeta/internal/provider"
	"github.com/John-Robertt/clipmeta/internal/provider/iwantclips"
	"github.com/John-Robertt/clipmeta/internal/stash"
)

// ErrNoInput 表示请求里 url/title/name 都没有（或 url 为空串）。
var ErrNoInput = errors.New("未提供 url/title/name")

// InputError 表示 stdin 不是合法的请求 JSON。
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return fmt.Sprintf("请求 JSON 无效：%v", e.Err) }

func (e *InputError) Unwrap() error { return e.Err }

// Mode 是一次调用实际走的路径。
type Mode string

const (
	ModeScene  Mode = "scene"
	ModeSearch Mode = "search"
	ModeNoop   Mode = "noop"
)

// Result 是一次调用的输出；Mode=noop 时不输出任何内容。
type Result struct {
	Mode   Mode
	Scene  *stash.Scene
	Search []stash.SearchResult
}

// Document 返回需要写到 stdout 的对象；ok=false 表示不输出。
func (r Result) Document() (doc any, ok bool) {
	switch r.Mode {
	case ModeScene:
		if r.Scene == nil {
			return nil, false
		}
		return r.Scene, true
	case ModeSearch:
		if r.Search == nil {
			return []stash.SearchResult{}, true
		}
		return r.Search, true
	default:
		return nil, false
	}
}

// Deps 是调度层依赖的全部能力。测试里可以替换为桩实现。
type Deps struct {
	Scenes      provider.SceneProvider
	Thumbnails  provider.ThumbnailResolver
	Searcher    provider.Searcher
	Credentials provider.CredentialChain

	MetaClient  *http.Client
	ImageClient *http.Client

	Logger   logging.Logger
	Observer Observer
}

// NewDeps 按最终配置装配站点 provider、HTTP client 与凭据来源链。
func NewDeps(eff config.EffectiveConfig, log logging.Logger) (Deps, error) {
	session := httpx.NewSession(eff.UserAgent, eff.AcceptLanguage)
	opts := httpx.Options{
		ProxyURL:   eff.ProxyURL,
		ImageProxy: eff.ImageProxy,
		Timeout:    eff.Timeout,
		RetryMax:   eff.RetryMax,
	}
	metaClient, err := httpx.NewMetaClient(session, opts)
	if err != nil {
		return Deps{}, &config.Error{Code: config.ErrCodeInvalid, Path: "proxy.url", Err: err}
	}
	imageClient, err := httpx.NewImageClient(session, opts)
	if err != nil {
		return Deps{}, &config.Error{Code: config.ErrCodeInvalid, Path: "image_proxy", Err: err}
	}

	p := iwantclips.Provider{
		BaseURL:        eff.BaseURL,
		SearchEndpoint: eff.SearchEndpoint,
		IndexName:      eff.SearchIndex,
		Agent:          eff.SearchAgent,
	}
	chain := provider.CredentialChain{iwantclips.FrontPageCredentials{Provider: p}}
	if eff.SearchAppID != "" && eff.SearchAPIKey != "" {
		chain = append(chain, provider.StaticCredentials{Creds: domain.Credentials{AppID: eff.SearchAppID, APIKey: eff.SearchAPIKey}})
	}

	return Deps{
		Scenes:      p,
		Thumbnails:  p,
		Searcher:    p,
		Credentials: chain,
		MetaClient:  metaClient,
		ImageClient: imageClient,
		Logger:      log,
	}, nil
}

func (d Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.Nop()
	}
	return d.Logger
}

func (d Deps) observer() Observer {
	if d.Observer == nil {
		return nopObserver{}
	}
	return d.Observer
}

// DecodeFragment 读取 stdin 上的请求对象。空输入视为没有提供任何 key。
func DecodeFragment(r io.Reader) (domain.Fragment, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.Fragment{}, &InputError{Err: err}
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return domain.Fragment{}, nil
	}
	var f domain.Fragment
	if err := json.Unmarshal(b, &f); err != nil {
		return domain.Fragment{}, &InputError{Err: err}
	}
	return f, nil
}

// Execute 按请求里出现的 key 选择路径：
// - url：详情页抓取（同时给了 name 时忽略 name，只输出一个 JSON 文档）
// - name：搜索
// - 只有 title：不做任何事（不输出）
// - 都没有：ErrNoInput
func Execute(ctx context.Context, d Deps, f domain.Fragment) (Result, error) {
	log := d.logger()

	switch {
	case f.HasURL():
		if f.HasName() {
			log.Warn("同时提供了 url 与 name，按 url 抓取详情页，忽略 name", logging.String("name", f.NameValue()))
		}
		u := f.URLValue()
		if u == "" {
			return Result{}, fmt.Errorf("url 为空：%w", ErrNoInput)
		}
		s, err := Scene(ctx, d, u)
		if err != nil {
			return Result{Mode: ModeScene}, err
		}
		return Result{Mode: ModeScene, Scene: &s}, nil

	case f.HasName():
		hits, err := Search(ctx, d, f.NameValue())
		if err != nil {
			return Result{Mode: ModeSearch}, err
		}
		return Result{Mode: ModeSearch, Search: hits}, nil

	case f.HasTitle():
		log.Warn("只提供了 title，不支持按标题刮削，跳过", logging.String("title", f.TitleValue()))
		return Result{Mode: ModeNoop}, nil

	default:
		return Result{}, ErrNoInput
	}
}

// Scene 抓取并解析详情页，选择缩略图，最后归一化为输出对象。
func Scene(ctx context.Context, d Deps, pageURL string) (s stash.Scene, err error) {
	obs := d.observer()
	log := d.logger().With(logging.String("path", string(ModeScene)), logging.String("url", pageURL))

	started := time.Now()
	obs.OnStart(ModeScene, pageURL)
	defer func() { obs.OnFinish(ModeScene, err, time.Since(started)) }()

	if d.Scenes == nil || d.Thumbnails == nil {
		return stash.Scene{}, errors.New("scene provider 未配置")
	}

	t0 := time.Now()
	rec, html, err := provider.FetchParse(ctx, d.Scenes, pageURL, d.MetaClient)
	obs.OnPhaseDone("scrape", phaseFields(err, "bytes", len(html)), time.Since(t0))
	if err != nil {
		return stash.Scene{}, err
	}
	log.Debug("详情页解析完成", logging.String("title", rec.Title), logging.String("date", rec.Date))

	t0 = time.Now()
	thumb, err := d.Thumbnails.ResolveThumbnail(ctx, d.ImageClient, rec.ThumbnailURL)
	obs.OnPhaseDone("thumbnail", phaseFields(err, "image", thumb), time.Since(t0))
	if err != nil {
		return stash.Scene{}, &provider.Error{Provider: strings.ToLower(d.Scenes.Name()), Stage: "thumbnail", Err: err}
	}
	if thumb != rec.ThumbnailURL {
		log.Debug("使用静态缩略图", logging.String("poster", rec.ThumbnailURL), logging.String("image", thumb))
	}
	rec.ThumbnailURL = thumb

	return stash.NormalizeScene(rec), nil
}

// Search 解析凭据并查询搜索索引，返回归一化后的结果列表（可能为空，但不为 nil）。
func Search(ctx context.Context, d Deps, query string) (out []stash.SearchResult, err error) {
	obs := d.observer()
	log := d.logger().With(logging.String("path", string(ModeSearch)), logging.String("query", query))

	started := time.Now()
	obs.OnStart(ModeSearch, query)
	defer func() { obs.OnFinish(ModeSearch, err, time.Since(started)) }()

	if d.Searcher == nil {
		return nil, errors.New("searcher 未配置")
	}

	t0 := time.Now()
	creds, used, attempts, err := d.Credentials.Resolve(ctx, d.MetaClient)
	for _, a := range attempts {
		if a.Err != nil {
			log.Warn("凭据来源不可用", logging.String("source", a.Source), logging.Err(a.Err))
		}
	}
	obs.OnPhaseDone("credentials", phaseFields(err, "source", used), time.Since(t0))
	if err != nil {
		return nil, err
	}
	log.Debug("已获取搜索凭据", logging.String("source", used), logging.String("app_id", creds.AppID))

	t0 = time.Now()
	hits, err := d.Searcher.Search(ctx, d.MetaClient, creds, query)
	obs.OnPhaseDone("search", phaseFields(err, "hits", len(hits)), time.Since(t0))
	if err != nil {
		return nil, err
	}
	return stash.NormalizeSearchHits(hits), nil
}

func phaseFields(err error, k string, v any) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{k: v}
}

// Code 把错误归类为对外的错误码（写入日志的 error_code 字段）。
func Code(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoInput) {
		return domain.ErrCodeConfigMissing
	}
	if c := config.Code(err); c != "" {
		return c
	}

	var (
		inErr   *InputError
		blocked *provider.BlockedError
		credErr *iwantclips.CredentialError
		markup  *iwantclips.MarkupError
		dateErr *iwantclips.DateFormatError
		respErr *iwantclips.ResponseError
		status  *provider.HTTPStatusError
		netErr  net.Error
	)
	switch {
	case errors.As(err, &inErr):
		return domain.ErrCodeDecodeFailed
	case errors.As(err, &blocked):
		return domain.ErrCodeBlocked
	case errors.As(err, &credErr):
		return domain.ErrCodeCredentialDiscovery
	case errors.As(err, &markup):
		return domain.ErrCodeMarkupMismatch
	case errors.As(err, &dateErr):
		return domain.ErrCodeDateFormatMismatch
	case errors.As(err, &respErr):
		return domain.ErrCodeDecodeFailed
	case errors.As(err, &status), errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrCodeTransport
	default:
		return domain.ErrCodeInternal
	}
}
