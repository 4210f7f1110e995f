// Package docker 定义 Docker registry（OCI distribution）代理模块。
//
// 按 digest 寻址的 blob/manifest 用路径中的摘要校验缓存副本，tag 与 tags/list 走 TTL，
// /v2/ 与 _catalog 不缓存。Docker Hub 上游的单段镜像名自动补 library/ 前缀。
package docker

import (
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/artipie/artipie/internal/hubmodule"
)

const dockerDefaultTTL = 12 * time.Hour

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "docker",
		Description:        "Docker registry proxy with digest-verified blobs and ttl tags",
		SupportedProtocols: []string{"docker", "oci"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        dockerDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			NormalizePath:  normalizePath,
			ExpectedDigest: expectedDigest,
			CachePolicy:    cachePolicy,
			ContentType:    contentType,
		},
	})
}

var dockerHubHosts = map[string]struct{}{
	"registry-1.docker.io": {},
	"docker.io":            {},
	"index.docker.io":      {},
}

// 仓库名之后的第一个路径段。
var endpointSegments = map[string]struct{}{
	"manifests": {},
	"blobs":     {},
	"tags":      {},
	"referrers": {},
}

var (
	isAPIRoot   = func(p string) bool { return p == "/v2" }
	isCatalog   = hubmodule.Contains("/_catalog")
	isAddressed = hubmodule.Contains("/blobs/sha256:", "/manifests/sha256:")
	rules       = hubmodule.Rules(hubmodule.ValidationModeTTL,
		hubmodule.PathRule{Match: isAddressed, Validation: hubmodule.ValidationModeChecksum},
	)
	contentType = hubmodule.ContentTypes(
		hubmodule.SuffixType{Suffix: "/tags/list", Type: "application/json"},
	)
)

func cachePolicy(ctx *hubmodule.RequestContext, storagePath string, current hubmodule.CachePolicy) hubmodule.CachePolicy {
	clean := hubmodule.CanonicalPath(storagePath)
	if isAPIRoot(clean) || isCatalog(clean) {
		return hubmodule.CachePolicy{}
	}
	return rules(ctx, storagePath, current)
}

func normalizePath(ctx *hubmodule.RequestContext, clean string, rawQuery []byte) (string, []byte) {
	if ctx == nil {
		return clean, rawQuery
	}
	if _, ok := dockerHubHosts[strings.ToLower(ctx.UpstreamHost)]; !ok {
		return clean, rawQuery
	}
	name, rest, ok := splitRepoPath(clean)
	if !ok || strings.Contains(name, "/") || name == "library" {
		return clean, rawQuery
	}
	return "/v2/library/" + name + rest, rawQuery
}

// expectedDigest 返回 /blobs/ 或 /manifests/ 之后、格式合法的 digest。
func expectedDigest(_ *hubmodule.RequestContext, clean string) string {
	for _, marker := range []string{"/blobs/", "/manifests/"} {
		idx := strings.LastIndex(clean, marker)
		if idx < 0 {
			continue
		}
		d, err := digest.Parse(clean[idx+len(marker):])
		if err != nil || d.Algorithm() != digest.SHA256 {
			return ""
		}
		return d.String()
	}
	return ""
}

// splitRepoPath 把 /v2/<name>/<endpoint>/... 拆成镜像名与 /<endpoint>/... 两段。
func splitRepoPath(p string) (string, string, bool) {
	suffix, ok := strings.CutPrefix(p, "/v2/")
	if !ok || strings.Trim(suffix, "/") == "" {
		return "", "", false
	}
	segments := strings.Split(suffix, "/")
	for i, seg := range segments {
		if seg == "" || seg == "_catalog" {
			return "", "", false
		}
		if _, ok := endpointSegments[seg]; ok {
			if i == 0 {
				return "", "", false
			}
			return strings.Join(segments[:i], "/"), "/" + strings.Join(segments[i:], "/"), true
		}
	}
	return "", "", false
}
