package hubmodule

import (
	"path"
	"strings"
)

// PathRule 把匹配的存储路径映射为一种校验模式。Match 收到的是 CanonicalPath 结果。
type PathRule struct {
	Match      func(p string) bool
	Validation ValidationMode
}

// Rules 构造按顺序匹配的 CachePolicy hook，首个命中的规则生效。
// 没有规则命中时：fallback 为空则不缓存，否则以 fallback 校验。
func Rules(fallback ValidationMode, rules ...PathRule) func(*RequestContext, string, CachePolicy) CachePolicy {
	return func(_ *RequestContext, storagePath string, current CachePolicy) CachePolicy {
		clean := CanonicalPath(storagePath)
		for _, rule := range rules {
			if rule.Match(clean) {
				current.AllowCache = true
				current.Validation = rule.Validation
				return current
			}
		}
		if fallback == "" {
			current.AllowCache = false
			return current
		}
		current.AllowCache = true
		current.Validation = fallback
		return current
	}
}

// SuffixType 描述一条 "路径后缀 → Content-Type" 映射。
type SuffixType struct {
	Suffix string
	Type   string
}

// ContentTypes 构造按后缀匹配的 ContentType hook，顺序即优先级。
func ContentTypes(table ...SuffixType) func(*RequestContext, string) string {
	return func(_ *RequestContext, storagePath string) string {
		clean := CanonicalPath(storagePath)
		for _, entry := range table {
			if strings.HasSuffix(clean, entry.Suffix) {
				return entry.Type
			}
		}
		return ""
	}
}

// CanonicalPath 返回小写、以 / 开头且经过 Clean 的路径。
func CanonicalPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	return strings.ToLower(path.Clean("/" + p))
}

func HasSuffix(suffixes ...string) func(string) bool {
	return func(p string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(p, s) {
				return true
			}
		}
		return false
	}
}

func HasPrefix(prefixes ...string) func(string) bool {
	return func(p string) bool {
		for _, s := range prefixes {
			if strings.HasPrefix(p, s) {
				return true
			}
		}
		return false
	}
}

func Contains(parts ...string) func(string) bool {
	return func(p string) bool {
		for _, s := range parts {
			if strings.Contains(p, s) {
				return true
			}
		}
		return false
	}
}

// All 要求所有条件同时成立。
func All(conds ...func(string) bool) func(string) bool {
	return func(p string) bool {
		for _, cond := range conds {
			if !cond(p) {
				return false
			}
		}
		return true
	}
}
