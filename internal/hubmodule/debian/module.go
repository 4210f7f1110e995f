// Package debian 注册 APT（Debian/Ubuntu）仓库代理。
//
// dists/ 下的 Release、InRelease、Packages*、Sources*、Contents-* 按 TTL 刷新；
// pool/ 下的包体不可变；by-hash/SHA256/<hex> 路径自带摘要，用摘要校验缓存副本。
package debian

import (
	"path"
	"strings"
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const debianDefaultTTL = 6 * time.Hour

const byHashSHA256 = "/by-hash/sha256/"

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "debian",
		Description:        "APT proxy with ttl indexes, immutable pool and digest-checked by-hash files",
		SupportedProtocols: []string{"debian", "apt"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        debianDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			ExpectedDigest: expectedDigest,
			CachePolicy:    cachePolicy,
			ContentType:    contentType,
		},
	})
}

var cachePolicy = hubmodule.Rules("",
	hubmodule.PathRule{Match: hubmodule.All(hubmodule.Contains("/dists/"), hubmodule.Contains(byHashSHA256)), Validation: hubmodule.ValidationModeChecksum},
	hubmodule.PathRule{Match: hubmodule.All(hubmodule.Contains("/dists/"), hubmodule.Contains("/by-hash/")), Validation: hubmodule.ValidationModeAlways},
	hubmodule.PathRule{Match: isIndex, Validation: hubmodule.ValidationModeTTL},
	hubmodule.PathRule{Match: hubmodule.Contains("/pool/"), Validation: hubmodule.ValidationModeAlways},
)

var contentType = hubmodule.ContentTypes(
	hubmodule.SuffixType{Suffix: ".deb", Type: "application/vnd.debian.binary-package"},
	hubmodule.SuffixType{Suffix: ".gz", Type: "application/gzip"},
	hubmodule.SuffixType{Suffix: ".xz", Type: "application/x-xz"},
	hubmodule.SuffixType{Suffix: "/release.gpg", Type: "application/pgp-signature"},
	hubmodule.SuffixType{Suffix: "/release", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: "/inrelease", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: "/packages", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: "/sources", Type: "text/plain"},
)

func isIndex(p string) bool {
	if !strings.Contains(p, "/dists/") {
		return false
	}
	base := path.Base(p)
	switch base {
	case "release", "inrelease", "release.gpg":
		return true
	}
	return strings.HasPrefix(base, "packages") ||
		strings.HasPrefix(base, "sources") ||
		strings.HasPrefix(base, "contents-")
}

// expectedDigest 从 by-hash/SHA256/<hex> 路径中取出摘要。
func expectedDigest(_ *hubmodule.RequestContext, clean string) string {
	lower := strings.ToLower(clean)
	idx := strings.LastIndex(lower, byHashSHA256)
	if idx < 0 {
		return ""
	}
	hex := lower[idx+len(byHashSHA256):]
	if len(hex) != 64 || strings.Contains(hex, "/") {
		return ""
	}
	return "sha256:" + hex
}
