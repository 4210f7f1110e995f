package npm

import (
	"encoding/json"
	"strings"

	"github.com/artipie/artipie/internal/hubmodule"
)

// rewriteResponse 把包文档中 versions.*.dist.tarball 指回本仓库，
// 使 npm install 下载 tarball 时同样经过缓存。
func rewriteResponse(
	ctx *hubmodule.RequestContext,
	status int,
	headers map[string]string,
	body []byte,
	path string,
) (int, map[string]string, []byte, error) {
	if ctx == nil || ctx.Domain == "" || strings.Contains(path, "/-/") || path == "/" {
		return status, headers, body, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		// 非 JSON 响应（例如上游错误页）原样返回。
		return status, headers, body, nil
	}
	var versions map[string]map[string]any
	if raw, ok := doc["versions"]; !ok || json.Unmarshal(raw, &versions) != nil {
		return status, headers, body, nil
	}
	changed := false
	for _, version := range versions {
		dist, ok := version["dist"].(map[string]any)
		if !ok {
			continue
		}
		original, _ := dist["tarball"].(string)
		if local := localTarball(ctx.Domain, original); local != "" && local != original {
			dist["tarball"] = local
			changed = true
		}
	}
	if !changed {
		return status, headers, body, nil
	}
	encoded, err := json.Marshal(versions)
	if err != nil {
		return status, headers, body, err
	}
	doc["versions"] = encoded
	out, err := json.Marshal(doc)
	if err != nil {
		return status, headers, body, err
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"
	delete(headers, "Content-Encoding")
	return status, headers, out, nil
}

// localTarball 保留 <name>/-/<file> 部分，丢弃上游主机与其前缀路径。
func localTarball(domain, original string) string {
	idx := strings.Index(original, "://")
	if idx < 0 {
		return ""
	}
	rest := original[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return ""
	}
	p := rest[slash:]
	marker := strings.Index(p, "/-/")
	if marker < 0 {
		return ""
	}
	name := p[:marker]
	// 作用域包在上游路径中可能是 /@scope%2fname。
	name = strings.ReplaceAll(name, "%2f", "/")
	name = strings.ReplaceAll(name, "%2F", "/")
	segments := strings.Split(strings.Trim(name, "/"), "/")
	keep := 1
	if len(segments) >= 2 && strings.HasPrefix(segments[len(segments)-2], "@") {
		keep = 2
	}
	if len(segments) < keep {
		return ""
	}
	pkg := strings.Join(segments[len(segments)-keep:], "/")
	if pkg == "" {
		return ""
	}
	return "https://" + domain + "/" + pkg + p[marker:]
}
