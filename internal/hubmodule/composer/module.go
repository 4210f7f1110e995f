// Package composer 注册 Composer（PHP）仓库代理。
//
// packages.json 与 p2/ 元数据按 TTL 刷新，并把其中的 dist 下载地址改写到
// /dist/<scheme>/<host>/... 以便包体经本仓库缓存；dist 包体不可变。
package composer

import (
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const composerDefaultTTL = 6 * time.Hour

const distPrefix = "/dist"

var (
	isDist     = hubmodule.HasPrefix(distPrefix + "/")
	isMetadata = func(p string) bool {
		return p == "/packages.json" || hubmodule.HasPrefix("/p2/", "/p/", "/provider-", "/providers/")(p)
	}
)

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "composer",
		Description:        "Composer proxy with ttl metadata and mirrored dist archives",
		SupportedProtocols: []string{"composer"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        composerDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			NormalizePath:   normalizePath,
			ResolveUpstream: resolveUpstream,
			RewriteResponse: rewriteResponse,
			CachePolicy:     cachePolicy,
			ContentType:     contentType,
		},
	})
}

var cachePolicy = hubmodule.Rules("",
	hubmodule.PathRule{Match: isDist, Validation: hubmodule.ValidationModeAlways},
	hubmodule.PathRule{Match: isMetadata, Validation: hubmodule.ValidationModeTTL},
)

// normalizePath 去掉 dist 请求的查询串，使同一个包体只落一份缓存。
func normalizePath(_ *hubmodule.RequestContext, clean string, rawQuery []byte) (string, []byte) {
	if isDist(clean) {
		return clean, nil
	}
	return clean, rawQuery
}

func resolveUpstream(_ *hubmodule.RequestContext, _ string, clean string, rawQuery []byte) string {
	target, ok := hubmodule.MirrorTarget(distPrefix, clean, rawQuery)
	if !ok {
		return ""
	}
	return target.String()
}

func contentType(_ *hubmodule.RequestContext, storagePath string) string {
	if isMetadata(storagePath) {
		return "application/json"
	}
	return ""
}
