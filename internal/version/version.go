// Package version 暴露构建版本，供 CLI 与启动日志使用。
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version 与 Commit 通过 -ldflags "-X" 注入；Commit 缺省时从 VCS 构建信息读取。
var (
	Version = "0.1.0"
	Commit  = ""
)

// Revision 返回提交号，无法确定时为 "dev"。
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return "dev"
}

// Full 形如 "artipie 0.1.0 (abc1234, go1.25.0)"。
func Full() string {
	return fmt.Sprintf("artipie %s (%s, %s)", Version, Revision(), runtime.Version())
}
