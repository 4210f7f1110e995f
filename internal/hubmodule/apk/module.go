// Package apk 注册 Alpine APK 仓库代理：APKINDEX 及其签名按 TTL 刷新，.apk 包体不可变。
package apk

import (
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const apkDefaultTTL = 6 * time.Hour

var (
	isIndex   = hubmodule.HasSuffix("/apkindex.tar.gz", "/apkindex.tar.gz.asc", "/apkindex.tar.gz.sig")
	isPackage = hubmodule.HasSuffix(".apk")
)

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "apk",
		Description:        "Alpine APK proxy with ttl indexes and immutable packages",
		SupportedProtocols: []string{"apk"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        apkDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			CachePolicy: cachePolicy,
			ContentType: contentType,
		},
	})
}

// 其他路径（镜像站首页、目录列表）不落缓存。
var cachePolicy = hubmodule.Rules("",
	hubmodule.PathRule{Match: isIndex, Validation: hubmodule.ValidationModeTTL},
	hubmodule.PathRule{Match: isPackage, Validation: hubmodule.ValidationModeAlways},
)

var contentType = hubmodule.ContentTypes(
	hubmodule.SuffixType{Suffix: ".apk", Type: "application/vnd.android.package-archive"},
	hubmodule.SuffixType{Suffix: ".tar.gz.asc", Type: "application/pgp-signature"},
	hubmodule.SuffixType{Suffix: ".tar.gz.sig", Type: "application/pgp-signature"},
	hubmodule.SuffixType{Suffix: ".tar.gz", Type: "application/gzip"},
)
