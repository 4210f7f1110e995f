package hubmodule

// CachePolicy 决定一个路径是否经过仓库缓存，以及缓存副本用哪种方式校验。
type CachePolicy struct {
	AllowCache bool
	Validation ValidationMode
}

// RequestContext 是 hooks 可见的请求信息，不暴露 server 内部类型。
type RequestContext struct {
	RepoName     string
	Domain       string
	RepoType     string
	ModuleKey    string
	UpstreamHost string
	Method       string
}

// Hooks 是模块按路径定制代理行为的扩展点，未设置的字段沿用通用逻辑。
//
// StorageKey 把规范化后的请求路径映射为仓库存储内的路径；ExpectedDigest 在路径
// 本身携带内容摘要时返回 "sha256:<hex>" 形式的引用。
type Hooks struct {
	NormalizePath   func(ctx *RequestContext, cleanPath string, rawQuery []byte) (string, []byte)
	ResolveUpstream func(ctx *RequestContext, baseURL string, path string, rawQuery []byte) string
	StorageKey      func(ctx *RequestContext, cleanPath string) string
	ExpectedDigest  func(ctx *RequestContext, cleanPath string) string
	RewriteResponse func(ctx *RequestContext, status int, headers map[string]string, body []byte, path string) (int, map[string]string, []byte, error)
	CachePolicy     func(ctx *RequestContext, storagePath string, current CachePolicy) CachePolicy
	ContentType     func(ctx *RequestContext, storagePath string) string
}

// Empty reports whether no hook is set.
func (h Hooks) Empty() bool {
	return h.NormalizePath == nil &&
		h.ResolveUpstream == nil &&
		h.StorageKey == nil &&
		h.ExpectedDigest == nil &&
		h.RewriteResponse == nil &&
		h.CachePolicy == nil &&
		h.ContentType == nil
}

// Names 列出已设置的 hook，供诊断端展示。
func (h Hooks) Names() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(h.NormalizePath != nil, "normalize_path")
	add(h.ResolveUpstream != nil, "resolve_upstream")
	add(h.StorageKey != nil, "storage_key")
	add(h.ExpectedDigest != nil, "expected_digest")
	add(h.RewriteResponse != nil, "rewrite_response")
	add(h.CachePolicy != nil, "cache_policy")
	add(h.ContentType != nil, "content_type")
	return names
}
