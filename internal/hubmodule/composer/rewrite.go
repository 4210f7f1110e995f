package composer

import (
	"encoding/json"
	"strings"

	"github.com/artipie/artipie/internal/hubmodule"
)

// rootURLFields 是 packages.json 中需要指回本仓库的 URL 模板。
var rootURLFields = []string{"metadata-url", "providers-url", "providers-lazy-url"}

func rewriteResponse(
	ctx *hubmodule.RequestContext,
	status int,
	headers map[string]string,
	body []byte,
	path string,
) (int, map[string]string, []byte, error) {
	var (
		out     []byte
		changed bool
		err     error
	)
	switch {
	case path == "/packages.json":
		out, changed, err = rewriteRoot(body, ctx.Domain)
	case isMetadata(path):
		out, changed, err = rewriteMetadata(body, ctx.Domain)
	default:
		return status, headers, body, nil
	}
	if err != nil || !changed {
		return status, headers, body, err
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"
	delete(headers, "Content-Encoding")
	delete(headers, "Etag")
	return status, headers, out, nil
}

func rewriteRoot(body []byte, domain string) ([]byte, bool, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, false, err
	}
	changed := false
	for _, field := range rootURLFields {
		raw, ok := root[field].(string)
		if !ok || raw == "" {
			continue
		}
		if rehosted := rehost(domain, raw); rehosted != raw {
			root[field] = rehosted
			changed = true
		}
	}
	if !changed {
		return body, false, nil
	}
	out, err := json.Marshal(root)
	return out, err == nil, err
}

// rewriteMetadata 处理 p2 的版本数组与 v1 的 version→entry 映射两种形态。
func rewriteMetadata(body []byte, domain string) ([]byte, bool, error) {
	var doc struct {
		Packages map[string]json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, err
	}
	changed := false
	for name, raw := range doc.Packages {
		updated, ok := rewriteVersions(raw, name, domain)
		if ok {
			doc.Packages[name] = updated
			changed = true
		}
	}
	if !changed {
		return body, false, nil
	}
	var full map[string]json.RawMessage
	if err := json.Unmarshal(body, &full); err != nil {
		return nil, false, err
	}
	packages, err := json.Marshal(doc.Packages)
	if err != nil {
		return nil, false, err
	}
	full["packages"] = packages
	out, err := json.Marshal(full)
	return out, err == nil, err
}

func rewriteVersions(raw json.RawMessage, name, domain string) (json.RawMessage, bool) {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		changed := false
		for _, entry := range list {
			changed = rewriteVersion(entry, name, domain) || changed
		}
		return marshalIfChanged(list, changed)
	}
	var byVersion map[string]map[string]any
	if err := json.Unmarshal(raw, &byVersion); err == nil {
		changed := false
		for _, entry := range byVersion {
			changed = rewriteVersion(entry, name, domain) || changed
		}
		return marshalIfChanged(byVersion, changed)
	}
	return raw, false
}

func marshalIfChanged(v any, changed bool) (json.RawMessage, bool) {
	if !changed {
		return nil, false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return out, true
}

// rewriteVersion 补齐缺失的包名，并把 dist.url 指向本仓库的 /dist 镜像路径。
func rewriteVersion(entry map[string]any, name, domain string) bool {
	if entry == nil {
		return false
	}
	changed := false
	if current, _ := entry["name"].(string); strings.TrimSpace(current) == "" && name != "" {
		entry["name"] = name
		changed = true
	}
	dist, ok := entry["dist"].(map[string]any)
	if !ok {
		return changed
	}
	original, _ := dist["url"].(string)
	if original == "" {
		return changed
	}
	if mirrored := hubmodule.MirrorURL(domain, distPrefix, original); mirrored != original {
		dist["url"] = mirrored
		changed = true
	}
	return changed
}

// rehost 只替换 scheme 与 host，%package% 之类的占位符保持原样；相对路径补全为绝对地址。
func rehost(domain, raw string) string {
	rest := raw
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		rest = raw[strings.Index(raw, "://")+3:]
	case strings.HasPrefix(raw, "//"):
		rest = raw[2:]
	default:
		return "https://" + domain + "/" + strings.TrimPrefix(raw, "/")
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return "https://" + domain + rest[idx:]
	}
	return "https://" + domain + "/"
}
