// Package npm 描述 npm Registry 代理模块：tarball 不可变，包文档按 TTL 刷新。
package npm

import (
	"strings"
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const npmDefaultTTL = 30 * time.Minute

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "npm",
		Description:        "NPM proxy module with immutable tarballs and ttl package documents",
		SupportedProtocols: []string{"npm"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        npmDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			StorageKey:      storageKey,
			RewriteResponse: rewriteResponse,
			CachePolicy:     cachePolicy,
			ContentType:     contentType,
		},
	})
}

var isTarball = hubmodule.All(hubmodule.Contains("/-/"), hubmodule.HasSuffix(".tgz"))

var cachePolicy = hubmodule.Rules(hubmodule.ValidationModeTTL,
	hubmodule.PathRule{Match: isTarball, Validation: hubmodule.ValidationModeAlways},
)

var contentType = hubmodule.ContentTypes(
	hubmodule.SuffixType{Suffix: ".tgz", Type: "application/octet-stream"},
	hubmodule.SuffixType{Suffix: "/package.json", Type: "application/json"},
)

// storageKey 把包文档落到 <name>/package.json，与 tarball 所在的 <name>/-/ 目录并存。
func storageKey(_ *hubmodule.RequestContext, clean string) string {
	if clean == "" || strings.Contains(clean, "/-/") {
		return clean
	}
	return strings.TrimSuffix(clean, "/") + "/package.json"
}
