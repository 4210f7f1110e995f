package hubmodule

import (
	"strings"
	"time"
)

// ValidationMode 决定缓存副本在被复用前如何校验。
type ValidationMode string

const (
	// ValidationModeAlways 视缓存为不可变内容，命中即返回。
	ValidationModeAlways ValidationMode = "always"
	// ValidationModeTTL 在 TTL 内复用缓存，过期后回源刷新。
	ValidationModeTTL ValidationMode = "ttl"
	// ValidationModeChecksum 使用摘要校验缓存副本的完整性。
	ValidationModeChecksum ValidationMode = "checksum"
	// ValidationModeRefresh 每次都回源，上游失败时才回退到缓存副本。
	ValidationModeRefresh ValidationMode = "refresh"
)

// ParseValidationMode 解析配置中的校验模式，空字符串或 default 返回 ""。
func ParseValidationMode(raw string) (ValidationMode, bool) {
	switch mode := ValidationMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "", "default":
		return "", true
	case ValidationModeAlways, ValidationModeTTL, ValidationModeChecksum, ValidationModeRefresh:
		return mode, true
	default:
		return "", false
	}
}

// CacheStrategyProfile 描述模块的缓存读写策略及其默认值。
type CacheStrategyProfile struct {
	TTLHint        time.Duration
	ValidationMode ValidationMode
}

// StrategyOptions 是 [[Repo]] 上的 TTL/Validation 覆盖项，零值表示沿用模块默认。
type StrategyOptions struct {
	TTLOverride        time.Duration
	ValidationOverride ValidationMode
}

// Apply 返回叠加覆盖项后的策略；负 TTL 归零，缺省校验模式为 ttl。
func (p CacheStrategyProfile) Apply(opts StrategyOptions) CacheStrategyProfile {
	if opts.TTLOverride > 0 {
		p.TTLHint = opts.TTLOverride
	}
	if opts.ValidationOverride != "" {
		p.ValidationMode = opts.ValidationOverride
	}
	p.TTLHint = max(p.TTLHint, 0)
	if p.ValidationMode == "" {
		p.ValidationMode = ValidationModeTTL
	}
	return p
}

// ResolveStrategy 合并模块默认策略与仓库覆盖项。
func ResolveStrategy(meta ModuleMetadata, opts StrategyOptions) CacheStrategyProfile {
	return meta.CacheStrategy.Apply(opts)
}

// ModuleMetadata 记录一个模块的静态信息与请求 hooks，供配置校验、路由构建和诊断端使用。
type ModuleMetadata struct {
	Key                string
	Description        string
	SupportedProtocols []string
	CacheStrategy      CacheStrategyProfile
	Hooks              Hooks
}
