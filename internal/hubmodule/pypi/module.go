// Package pypi 注册 PyPI simple index 代理。
//
// /simple/ 页面按 TTL 刷新，并把其中指向 files.pythonhosted.org 等主机的链接改写为
// /files/<scheme>/<host>/...；wheel/sdist 等分发包内容不可变。
package pypi

import (
	"strings"
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const pypiDefaultTTL = 15 * time.Minute

const filesPrefix = "/files"

var isDistribution = hubmodule.HasSuffix(".whl", ".tar.gz", ".tar.bz2", ".tgz", ".zip", ".egg")

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "pypi",
		Description:        "PyPI simple index proxy with mirrored distribution files",
		SupportedProtocols: []string{"pypi"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        pypiDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			NormalizePath:   normalizePath,
			ResolveUpstream: resolveUpstream,
			StorageKey:      storageKey,
			RewriteResponse: rewriteResponse,
			CachePolicy:     cachePolicy,
			ContentType:     contentType,
		},
	})
}

var cachePolicy = hubmodule.Rules(hubmodule.ValidationModeTTL,
	hubmodule.PathRule{Match: isDistribution, Validation: hubmodule.ValidationModeAlways},
)

// normalizePath 把裸包名（/requests）归一到 /simple/requests/。
func normalizePath(_ *hubmodule.RequestContext, clean string, rawQuery []byte) (string, []byte) {
	switch {
	case strings.HasPrefix(clean, "/simple/"):
		if !strings.HasSuffix(clean, "/") {
			clean += "/"
		}
		return clean, rawQuery
	case strings.HasPrefix(clean, filesPrefix+"/"), isDistribution(strings.ToLower(clean)):
		return clean, rawQuery
	}
	name := strings.Trim(clean, "/")
	if name == "" || strings.HasPrefix(name, "_") {
		return clean, rawQuery
	}
	return "/simple/" + name + "/", rawQuery
}

func resolveUpstream(_ *hubmodule.RequestContext, _ string, clean string, rawQuery []byte) string {
	target, ok := hubmodule.MirrorTarget(filesPrefix, clean, rawQuery)
	if !ok {
		return ""
	}
	return target.String()
}

// storageKey 把 index 页面落到 <dir>/index.html，目录下还会有其它对象。
func storageKey(_ *hubmodule.RequestContext, clean string) string {
	if clean == "/" || strings.HasPrefix(clean, "/simple") {
		return strings.TrimSuffix(clean, "/") + "/index.html"
	}
	return clean
}

func contentType(_ *hubmodule.RequestContext, storagePath string) string {
	if strings.Contains(storagePath, "/simple/") {
		return "text/html"
	}
	return ""
}
