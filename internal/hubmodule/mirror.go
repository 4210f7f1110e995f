package hubmodule

import (
	"net/url"
	"strings"
)

// MirrorURL 把索引里指向第三方主机的绝对地址改写为
// https://<domain><prefix>/<scheme>/<host><path>，让客户端回到本仓库下载并命中缓存。
// 非绝对地址原样返回。
func MirrorURL(domain, prefix, original string) string {
	parsed, err := url.Parse(original)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return original
	}
	base := strings.TrimSuffix(prefix, "/") + "/" + parsed.Scheme + "/" + parsed.Host
	mirrored := url.URL{
		Scheme:   "https",
		Host:     domain,
		Path:     base + parsed.Path,
		RawQuery: parsed.RawQuery,
		Fragment: parsed.Fragment,
	}
	if parsed.RawPath != "" {
		mirrored.RawPath = base + parsed.RawPath
	}
	return mirrored.String()
}

// MirrorTarget 把 MirrorURL 生成的路径还原为原始上游地址。
func MirrorTarget(prefix, clean string, rawQuery []byte) (*url.URL, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(clean, prefix) {
		return nil, false
	}
	parts := strings.SplitN(strings.TrimPrefix(clean, prefix), "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	if parts[0] != "http" && parts[0] != "https" {
		return nil, false
	}
	target := &url.URL{
		Scheme:   parts[0],
		Host:     parts[1],
		Path:     "/" + parts[2],
		RawQuery: string(rawQuery),
	}
	return target, true
}
