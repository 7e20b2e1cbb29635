package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/clipmeta/internal/domain"
)

// SceneProvider 把“站点页面结构”限制在 provider 包内部；调度层只依赖统一接口与稳定的 SceneRecord。
//
// 约束：
// - Fetch 不做缓存、不做重试、不做限速（网络策略由 httpx 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出（缩略图探测等网络动作不放在 Parse 里）
// - pageURL 必须是详情页（写入 SceneRecord.SourceURL，作为来源标记）
type SceneProvider interface {
	Name() string
	Fetch(ctx context.Context, pageURL string, c *http.Client) (html []byte, err error)
	Parse(html []byte, pageURL string) (domain.SceneRecord, error)
}

// ThumbnailResolver 负责缩略图“质量回退”：在原图与候选静态图之间做选择。
type ThumbnailResolver interface {
	ResolveThumbnail(ctx context.Context, c *http.Client, posterURL string) (string, error)
}

// Searcher 对托管搜索索引发起一次查询（只取第一页，不分页、不重试）。
type Searcher interface {
	Search(ctx context.Context, c *http.Client, creds domain.Credentials, query string) ([]domain.SearchHit, error)
}

// CredentialSource 提供搜索服务凭据。
// 前台页面抓取是主来源；配置里的静态凭据只作为兜底来源。
type CredentialSource interface {
	Name() string
	Credentials(ctx context.Context, c *http.Client) (domain.Credentials, error)
}
