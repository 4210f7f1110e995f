package proxy

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/hubmodule"
	"github.com/artipie/artipie/internal/server"
)

// checksumHeaders 是常见制品仓库（Artifactory/Nexus/Maven Central）在响应头中给出的摘要。
var checksumHeaders = []struct {
	header    string
	algorithm cache.Algorithm
}{
	{"X-Checksum-Sha256", cache.SHA256},
	{"X-Checksum-Sha1", cache.SHA1},
	{"X-Checksum-Md5", cache.MD5},
}

// checksumSidecars 是 Maven 布局下与制品并列发布的摘要文件。
var checksumSidecars = []struct {
	suffix    string
	algorithm cache.Algorithm
}{
	{".sha256", cache.SHA256},
	{".sha1", cache.SHA1},
	{".md5", cache.MD5},
}

// buildControl 把校验模式映射为缓存控制策略。
func (h *Handler) buildControl(
	route *server.RepoRoute,
	policy hubmodule.CachePolicy,
	hook *hookState,
	req *upstreamRequest,
	requestID string,
) cache.Control {
	switch policy.Validation {
	case hubmodule.ValidationModeAlways:
		return cache.Always
	case hubmodule.ValidationModeRefresh:
		return cache.NoCache
	case hubmodule.ValidationModeChecksum:
		return h.checksumControl(route, hook, req, requestID)
	default:
		return ttlControl(route)
	}
}

func ttlControl(route *server.RepoRoute) cache.Control {
	ttl := route.CacheStrategy.TTLHint
	if ttl <= 0 {
		ttl = route.CacheTTL
	}
	return cache.TimeControl(route.Storage, ttl)
}

// checksumControl 优先使用路径自带的摘要（如 OCI digest）；否则在本地副本存在时
// 才向上游查询摘要，查不到时退回 TTL 校验。
func (h *Handler) checksumControl(route *server.RepoRoute, hook *hookState, req *upstreamRequest, requestID string) cache.Control {
	if ref := expectedDigest(hook); ref != "" {
		if alg, expected, err := cache.FromOCIDigest(ref); err == nil {
			return cache.DigestVerification(alg, expected)
		}
	}
	fallback := ttlControl(route)
	return cache.ControlFunc(func(ctx context.Context, key asto.Key, remote cache.Remote) (bool, error) {
		controls := h.upstreamChecksums(ctx, route, req, requestID)
		if len(controls) == 0 {
			return fallback.Validate(ctx, key, remote)
		}
		return cache.All(controls...).Validate(ctx, key, remote)
	})
}

func (h *Handler) upstreamChecksums(ctx context.Context, route *server.RepoRoute, req *upstreamRequest, requestID string) []cache.Control {
	logger := h.routeLogger(route, requestID).WithField("action", "checksum_lookup")

	resp, err := h.fetch(ctx, route, req, http.MethodHead, req.url, requestID)
	if err != nil {
		logger.WithError(err).Debug("checksum_head_failed")
		return nil
	}
	drainAndClose(resp.Body)

	var controls []cache.Control
	if resp.StatusCode == http.StatusOK {
		for _, item := range checksumHeaders {
			value := strings.TrimSpace(resp.Header.Get(item.header))
			if value == "" {
				continue
			}
			control, err := cache.Verification(item.algorithm, value)
			if err != nil {
				logger.WithError(err).WithField("header", item.header).Debug("checksum_header_invalid")
				continue
			}
			controls = append(controls, control)
		}
	}
	if len(controls) > 0 {
		return controls
	}

	for _, item := range checksumSidecars {
		if control, ok := h.sidecarChecksum(ctx, route, req, item.suffix, item.algorithm, requestID, logger); ok {
			return []cache.Control{control}
		}
	}
	return nil
}

func (h *Handler) sidecarChecksum(
	ctx context.Context,
	route *server.RepoRoute,
	req *upstreamRequest,
	suffix string,
	algorithm cache.Algorithm,
	requestID string,
	logger logrus.FieldLogger,
) (cache.Control, bool) {
	target := sidecarURL(req.url, suffix)
	resp, err := h.fetch(ctx, route, req, http.MethodGet, target, requestID)
	if err != nil {
		logger.WithError(err).WithField("sidecar", suffix).Debug("checksum_sidecar_failed")
		return nil, false
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	value, err := readChecksumValue(resp.Body)
	if err != nil || value == "" {
		return nil, false
	}
	control, err := cache.Verification(algorithm, value)
	if err != nil {
		logger.WithError(err).WithField("sidecar", suffix).Debug("checksum_sidecar_invalid")
		return nil, false
	}
	return control, true
}

func sidecarURL(base *url.URL, suffix string) *url.URL {
	target := *base
	target.Path += suffix
	target.RawPath = ""
	target.RawQuery = ""
	return &target
}

// readChecksumValue 读取摘要文件首个字段，兼容 "<hex>  <filename>" 格式。
func readChecksumValue(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, 1024))
	scanner.Split(bufio.ScanWords)
	if scanner.Scan() {
		return strings.ToLower(scanner.Text()), nil
	}
	return "", scanner.Err()
}
