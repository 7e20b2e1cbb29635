package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/John-Robertt/clipmeta/internal/domain"
	"github.com/John-Robertt/clipmeta/internal/infra/httpx"
	"github.com/John-Robertt/clipmeta/internal/logging"
	"github.com/John-Robertt/clipmeta/internal/provider/iwantclips"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/环境变量无法解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// FileName 是未指定 --config 时在 cwd 下查找的配置文件（可选）。
	FileName = "clipmeta.toml"
	// EnvFileName 是 cwd 下的环境变量文件（可选）。
	EnvFileName = ".env"
	// EnvPrefix 是环境变量覆盖的前缀，例如 CLIPMETA_PROXY_URL。
	EnvPrefix = "CLIPMETA_"

	// MaxRetry 是 retry_max 的上限；超出截断。
	MaxRetry = 5
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --proxy="" 必须能覆盖配置文件里的 proxy.url。
type CLIArgs struct {
	ConfigPath string

	LogLevel    string
	LogLevelSet bool

	ProxyURL string
	ProxySet bool
}

// FileConfig 对应 clipmeta.toml 的解析结构。
type FileConfig struct {
	BaseURL        string       `toml:"base_url"`
	UserAgent      string       `toml:"user_agent"`
	AcceptLanguage string       `toml:"accept_language"`
	Timeout        string       `toml:"timeout"`
	Proxy          *ProxyConfig `toml:"proxy"`
	ImageProxy     *bool        `toml:"image_proxy"`
	RetryMax       *int         `toml:"retry_max"`
	Search         SearchConfig `toml:"search"`
	Log            LogConfig    `toml:"log"`
}

type ProxyConfig struct {
	URL string `toml:"url"`
}

// SearchConfig 覆盖搜索服务的地址与索引；app_id/api_key 只在首页凭据发现失败时兜底使用。
type SearchConfig struct {
	Index    string `toml:"index"`
	Agent    string `toml:"agent"`
	Endpoint string `toml:"endpoint"`
	AppID    string `toml:"app_id"`
	APIKey   string `toml:"api_key"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigFile 是实际读取的配置文件；没有配置文件时为空。
	ConfigFile string

	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration

	ProxyURL   string
	ImageProxy bool
	RetryMax   int

	SearchIndex    string
	SearchAgent    string
	SearchEndpoint string
	SearchAppID    string
	SearchAPIKey   string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LookupFunc 与 os.LookupEnv 同签名，便于测试注入环境。
type LookupFunc func(key string) (string, bool)

// LoadEffective 发现并读取配置，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须读取该文件（不存在即报错）
// 2) 否则尝试读取 <cwd>/clipmeta.toml（可选）
// 3) <cwd>/.env 中的 CLIPMETA_* 变量视同环境变量，但进程环境变量优先
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 内置默认。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return loadEffective(cwd, cli, os.LookupEnv)
}

func loadEffective(cwd string, cli CLIArgs, lookup LookupFunc) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath  string
		required bool
	)
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists && required {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if !exists {
		cfgPath = ""
	}

	envPath := filepath.Join(cwdAbs, EnvFileName)
	dotenv, err := readDotEnv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}
	env := func(name string) (string, bool) {
		key := EnvPrefix + name
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := applyEnv(&fc, env); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "env", Err: err}
	}

	where := cfgPath
	if where == "" {
		where = "<defaults>"
	}
	ec, err := merge(cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: where, Err: err}
	}
	ec.ConfigFile = cfgPath
	return ec, nil
}

// applyEnv 把 CLIPMETA_* 覆盖写回 FileConfig（视作更高优先级的配置来源）。
func applyEnv(fc *FileConfig, env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	str("BASE_URL", &fc.BaseURL)
	str("USER_AGENT", &fc.UserAgent)
	str("ACCEPT_LANGUAGE", &fc.AcceptLanguage)
	str("TIMEOUT", &fc.Timeout)
	str("SEARCH_INDEX", &fc.Search.Index)
	str("SEARCH_AGENT", &fc.Search.Agent)
	str("SEARCH_ENDPOINT", &fc.Search.Endpoint)
	str("SEARCH_APP_ID", &fc.Search.AppID)
	str("SEARCH_API_KEY", &fc.Search.APIKey)
	str("LOG_LEVEL", &fc.Log.Level)
	str("LOG_FORMAT", &fc.Log.Format)
	str("LOG_FILE", &fc.Log.File)

	if v, ok := env("PROXY_URL"); ok {
		fc.Proxy = &ProxyConfig{URL: v}
	}
	if v, ok := env("IMAGE_PROXY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sIMAGE_PROXY 不是布尔值：%q", EnvPrefix, v)
		}
		fc.ImageProxy = &b
	}
	if v, ok := env("RETRY_MAX"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sRETRY_MAX 不是整数：%q", EnvPrefix, v)
		}
		fc.RetryMax = &n
	}
	return nil
}

func merge(cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(fc.BaseURL), "/")
	if baseURL == "" {
		baseURL = iwantclips.DefaultBaseURL
	}
	if err := validateHTTPURL("base_url", baseURL); err != nil {
		return EffectiveConfig{}, err
	}

	timeout := httpx.DefaultTimeout
	if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return EffectiveConfig{}, fmt.Errorf("timeout 无效：%q（示例：20s）", s)
		}
		timeout = d
	}

	// proxy：CLI > config
	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if cli.ProxySet {
		proxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	imageProxy := fc.ImageProxy != nil && *fc.ImageProxy
	if imageProxy && proxyURL == "" {
		return EffectiveConfig{}, fmt.Errorf("image_proxy=true 但 proxy.url 为空")
	}

	retryMax := 0
	if fc.RetryMax != nil {
		retryMax = *fc.RetryMax
	}
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > MaxRetry {
		retryMax = MaxRetry
	}

	endpoint := strings.TrimRight(strings.TrimSpace(fc.Search.Endpoint), "/")
	if endpoint == "" {
		endpoint = iwantclips.DefaultEndpoint
	}
	if err := validateHTTPURL("search.endpoint", strings.ReplaceAll(endpoint, "{app}", "app")); err != nil {
		return EffectiveConfig{}, err
	}

	appID := strings.TrimSpace(fc.Search.AppID)
	apiKey := strings.TrimSpace(fc.Search.APIKey)
	if (appID == "") != (apiKey == "") {
		return EffectiveConfig{}, fmt.Errorf("search.app_id 与 search.api_key 必须同时提供")
	}

	// log level：CLI > config > 默认 info
	level := strings.TrimSpace(fc.Log.Level)
	if cli.LogLevelSet {
		level = strings.TrimSpace(cli.LogLevel)
	}
	if level == "" {
		level = "info"
	}
	if _, err := logging.ParseLevel(level); err != nil {
		return EffectiveConfig{}, err
	}
	format := strings.ToLower(strings.TrimSpace(fc.Log.Format))
	switch format {
	case "":
		format = logging.FormatAuto
	case logging.FormatAuto, logging.FormatConsole, logging.FormatJSON:
	default:
		return EffectiveConfig{}, fmt.Errorf("log.format 只能是 auto/console/json，实际是 %q", fc.Log.Format)
	}

	return EffectiveConfig{
		BaseURL:        baseURL,
		UserAgent:      orDefault(fc.UserAgent, httpx.DefaultUserAgent),
		AcceptLanguage: orDefault(fc.AcceptLanguage, httpx.DefaultAcceptLanguage),
		Timeout:        timeout,

		ProxyURL:   proxyURL,
		ImageProxy: imageProxy,
		RetryMax:   retryMax,

		SearchIndex:    orDefault(fc.Search.Index, iwantclips.DefaultIndex),
		SearchAgent:    orDefault(fc.Search.Agent, iwantclips.DefaultAgent),
		SearchEndpoint: endpoint,
		SearchAppID:    appID,
		SearchAPIKey:   apiKey,

		LogLevel:  strings.ToLower(level),
		LogFormat: format,
		LogFile:   strings.TrimSpace(fc.Log.File),
	}, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
// 未知字段视为错误（多半是拼写错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	md, err := toml.Decode(string(b), &fc)
	if err != nil {
		return FileConfig{}, true, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return FileConfig{}, true, fmt.Errorf("未知字段：%s", strings.Join(keys, ", "))
	}
	return fc, true, nil
}

// readDotEnv 读取 .env（不存在不算错误）；不写回进程环境。
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
