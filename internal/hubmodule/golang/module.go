// Package golang 描述 Go module proxy（GOPROXY 协议）的缓存策略。
//
// @v/<version>.zip|.mod|.info 一经发布不可变；@v/list、@latest 与 sumdb 查询按 TTL 刷新。
package golang

import (
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const goDefaultTTL = 30 * time.Minute

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "go",
		Description:        "Go module proxy with immutable @v artifacts",
		SupportedProtocols: []string{"go", "goproxy"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        goDefaultTTL,
			ValidationMode: hubmodule.ValidationModeTTL,
		},
		Hooks: hubmodule.Hooks{
			CachePolicy: cachePolicy,
			ContentType: contentType,
		},
	})
}

var isModuleArtifact = hubmodule.All(
	hubmodule.Contains("/@v/"),
	hubmodule.HasSuffix(".zip", ".mod", ".info"),
)

var cachePolicy = hubmodule.Rules(hubmodule.ValidationModeTTL,
	hubmodule.PathRule{Match: isModuleArtifact, Validation: hubmodule.ValidationModeAlways},
)

var contentType = hubmodule.ContentTypes(
	hubmodule.SuffixType{Suffix: ".zip", Type: "application/zip"},
	hubmodule.SuffixType{Suffix: ".info", Type: "application/json"},
	hubmodule.SuffixType{Suffix: "/@latest", Type: "application/json"},
	hubmodule.SuffixType{Suffix: ".mod", Type: "text/plain; charset=utf-8"},
	hubmodule.SuffixType{Suffix: "/@v/list", Type: "text/plain; charset=utf-8"},
)
