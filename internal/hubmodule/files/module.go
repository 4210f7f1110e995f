// Package files 提供通用文件代理：任意路径原样缓存，校验方式完全由仓库配置决定。
package files

import (
	"github.com/artipie/artipie/internal/hubmodule"
)

func init() {
	hubmodule.MustRegister(hubmodule.ModuleMetadata{
		Key:                "files",
		Description:        "Generic file proxy caching every path as immutable content",
		SupportedProtocols: []string{"http", "https", "file"},
		CacheStrategy: hubmodule.CacheStrategyProfile{
			ValidationMode: hubmodule.ValidationModeAlways,
		},
	})
}
