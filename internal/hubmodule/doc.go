// Package hubmodule 登记各仓库类型（maven/npm/go/pypi/docker/composer/debian/apk/files）
// 的模块元数据。
//
// 每个模块位于 internal/hubmodule/<key>/，在 init() 中调用 MustRegister，声明：
//   - 默认 TTL 与校验模式（CacheStrategyProfile）；
//   - 按路径定制代理行为的 Hooks，常用规则可由 Rules/ContentTypes/MirrorURL 组合而成。
//
// 仓库配置里的 Type 即模块 key；main 通过匿名 import 触发注册。
package hubmodule
