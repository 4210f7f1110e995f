// Package maven 描述 Maven 仓库代理模块：制品不可变，maven-metadata.xml 与 SNAPSHOT 按 TTL 刷新。
package maven

import (
	"time"

	"github.com/artipie/artipie/internal/hubmodule"
)

const mavenDefaultTTL = 12 * time.Hour

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "maven",
		Description:        "Maven repository proxy with immutable artifacts and ttl metadata",
		SupportedProtocols: []string{"maven", "gradle"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			TTLHint:        mavenDefaultTTL,
			ValidationMode: hubmodule.ValidationModeAlways,
		},
		Hooks: hubmodule.Hooks{
			CachePolicy: cachePolicy,
			ContentType: contentType,
		},
	})
}

// 路径已被 CanonicalPath 转为小写；metadata 规则同时覆盖 maven-metadata.xml 的校验文件。
var cachePolicy = hubmodule.Rules(hubmodule.ValidationModeAlways,
	hubmodule.PathRule{Match: hubmodule.Contains("maven-metadata.xml", "-snapshot/"), Validation: hubmodule.ValidationModeTTL},
)

var contentType = hubmodule.ContentTypes(
	hubmodule.SuffixType{Suffix: ".pom", Type: "application/xml"},
	hubmodule.SuffixType{Suffix: ".xml", Type: "application/xml"},
	hubmodule.SuffixType{Suffix: ".jar", Type: "application/java-archive"},
	hubmodule.SuffixType{Suffix: ".war", Type: "application/java-archive"},
	hubmodule.SuffixType{Suffix: ".ear", Type: "application/java-archive"},
	hubmodule.SuffixType{Suffix: ".sha1", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: ".sha256", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: ".sha512", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: ".md5", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: ".asc", Type: "text/plain"},
	hubmodule.SuffixType{Suffix: ".module", Type: "application/json"},
	hubmodule.SuffixType{Suffix: ".json", Type: "application/json"},
)
