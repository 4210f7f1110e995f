package proxy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/hubmodule"
	"github.com/artipie/artipie/internal/logging"
	"github.com/artipie/artipie/internal/metrics"
	"github.com/artipie/artipie/internal/server"
)

// outcomeBypass 表示请求未经过仓库缓存（缓存被策略关闭或 CacheMode=none）。
const outcomeBypass cache.Outcome = "bypass"

// Handler 把请求路径映射为仓库存储 key，交给 route.Cache 完成
// “校验本地副本 → 回源写缓存 → 失败时回退旧副本” 的流程，再把结果流式返回。
type Handler struct {
	clients *server.ClientPool
	logger  *logrus.Logger
	metrics *metrics.Metrics
	tokens  singleflight.Group
}

// hookState 是一次请求经模块 hooks 处理后的路径视图。
type hookState struct {
	ctx      *hubmodule.RequestContext
	def      hubmodule.Hooks
	clean    string
	rawQuery []byte
	storage  string
}

// NewHandler constructs a proxy handler with shared HTTP client/logger/metrics.
// m may be nil.
func NewHandler(client *http.Client, logger *logrus.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		clients: server.NewClientPool(client),
		logger:  logger,
		metrics: m,
	}
}

func buildHookContext(route *server.RepoRoute, c fiber.Ctx) *hubmodule.RequestContext {
	ctx := &hubmodule.RequestContext{Method: c.Method()}
	if route == nil {
		return ctx
	}
	ctx.RepoName = route.Config.Name
	ctx.Domain = route.Config.Domain
	ctx.RepoType = route.Config.Type
	ctx.ModuleKey = route.ModuleKey
	if route.UpstreamURL != nil {
		ctx.UpstreamHost = route.UpstreamURL.Host
	}
	return ctx
}

func newHookState(route *server.RepoRoute, c fiber.Ctx) *hookState {
	def := route.Module.Hooks
	state := &hookState{
		ctx:      buildHookContext(route, c),
		def:      def,
		clean:    normalizeRequestPath(string(c.Request().URI().Path())),
		rawQuery: append([]byte(nil), c.Request().URI().QueryString()...),
	}
	if def.NormalizePath != nil {
		newPath, newQuery := def.NormalizePath(state.ctx, state.clean, state.rawQuery)
		if newPath != "" {
			state.clean = newPath
		}
		state.rawQuery = newQuery
	}
	state.storage = state.clean
	if def.StorageKey != nil {
		if key := def.StorageKey(state.ctx, state.clean); key != "" {
			state.storage = key
		}
	}
	return state
}

// Handle 执行缓存加载与响应输出，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, route *server.RepoRoute) error {
	started := time.Now()
	requestID := server.RequestID(c)

	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		h.logResult(route, "", requestID, fiber.StatusMethodNotAllowed, outcomeBypass, started, nil)
		return h.writeError(c, fiber.StatusMethodNotAllowed, "method_not_allowed")
	}

	hook := newHookState(route, c)
	upstream := snapshotRequest(c, route, hook)
	policy := determineCachePolicy(route, hook)
	state := &fetchState{}

	remote := h.remote(route, upstream, requestID, state)
	if policy.Validation != hubmodule.ValidationModeRefresh {
		remote = cache.WithErrorHandling(remote, h.routeLogger(route, requestID).WithField("upstream", upstream.url.String()))
	}
	control := h.buildControl(route, policy, hook, upstream, requestID)

	store := route.Cache
	if !policy.AllowCache || store == nil {
		store = cache.NOP
	}

	outcome := outcomeBypass
	ctx := cache.WithRecorder(requestContext(c), &outcome)
	content, err := store.Load(ctx, buildKey(hook.storage, hook.rawQuery), remote, control)

	c.Set("X-Artipie-Cache", string(outcome))
	c.Set("X-Artipie-Upstream", upstream.url.String())
	setRequestIDHeader(c, requestID)

	if err != nil {
		status, code := classifyLoadError(err)
		h.logResult(route, upstream.url.String(), requestID, status, outcome, started, err)
		return h.writeError(c, status, code)
	}
	if content == nil {
		h.logResult(route, upstream.url.String(), requestID, fiber.StatusNotFound, outcome, started, nil)
		return h.writeError(c, fiber.StatusNotFound, "not_found")
	}

	err = h.serve(c, route, hook, content, state)
	h.logResult(route, upstream.url.String(), requestID, c.Response().StatusCode(), outcome, started, err)
	return err
}

// serve 输出内容。Docker manifest 与需要改写的索引页会整体读入内存，其余内容直接流式返回。
func (h *Handler) serve(c fiber.Ctx, route *server.RepoRoute, hook *hookState, content asto.Content, state *fetchState) error {
	contentType := resolveContentType(route, hook, state)
	manifest := isDockerManifestPath(hook.clean)

	if ref := expectedDigest(hook); ref != "" && route.ModuleKey == "docker" {
		c.Set("Docker-Content-Digest", ref)
	}

	if manifest || shouldRewrite(hook, contentType) {
		data, err := asto.ReadAll(content)
		if err != nil {
			return h.writeError(c, fiber.StatusInternalServerError, "cache_read_failed")
		}
		headers := map[string]string{}
		if manifest {
			if contentType == "" {
				contentType = sniffDockerManifestContentType(data)
			}
			headers["Docker-Content-Digest"] = digest.FromBytes(data).String()
		}
		if contentType != "" {
			headers[fiber.HeaderContentType] = contentType
		}
		if shouldRewrite(hook, contentType) {
			data, headers = h.applyRewrite(route, hook, headers, data)
		}
		for key, value := range headers {
			c.Set(key, value)
		}
		c.Status(fiber.StatusOK)
		if c.Method() == http.MethodHead {
			c.Response().Header.SetContentLength(len(data))
			return nil
		}
		return c.Send(data)
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	} else {
		c.Response().Header.Del(fiber.HeaderContentType)
	}
	c.Status(fiber.StatusOK)

	size, known := content.Size()
	if c.Method() == http.MethodHead {
		if known {
			c.Response().Header.SetContentLength(int(size))
		}
		if reader, err := content.Open(); err == nil {
			_ = reader.Close()
		}
		return nil
	}

	reader, err := content.Open()
	if err != nil {
		return h.writeError(c, fiber.StatusInternalServerError, "cache_read_failed")
	}
	if known {
		return c.SendStream(reader, int(size))
	}
	return c.SendStream(reader)
}

func (h *Handler) applyRewrite(route *server.RepoRoute, hook *hookState, headers map[string]string, data []byte) ([]byte, map[string]string) {
	_, newHeaders, newBody, err := hook.def.RewriteResponse(hook.ctx, fiber.StatusOK, headers, data, hook.clean)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action": "hook_rewrite",
			"repo":   route.Config.Name,
			"path":   hook.clean,
		}).Warn("hook_rewrite_failed")
		return data, headers
	}
	if newHeaders == nil {
		newHeaders = headers
	}
	if newBody == nil {
		newBody = data
	}
	return newBody, newHeaders
}

func shouldRewrite(hook *hookState, contentType string) bool {
	if hook == nil || hook.def.RewriteResponse == nil {
		return false
	}
	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "html") ||
		strings.Contains(lower, "json") ||
		strings.HasSuffix(hook.storage, ".html") ||
		strings.HasSuffix(hook.storage, ".json")
}

func expectedDigest(hook *hookState) string {
	if hook == nil || hook.def.ExpectedDigest == nil {
		return ""
	}
	return hook.def.ExpectedDigest(hook.ctx, hook.clean)
}

// classifyLoadError 区分上游失败与本地存储失败。
func classifyLoadError(err error) (int, string) {
	var remoteErr *cache.RemoteError
	if errors.As(err, &remoteErr) {
		return fiber.StatusBadGateway, "upstream_failed"
	}
	return fiber.StatusInternalServerError, "cache_failed"
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (h *Handler) logResult(
	route *server.RepoRoute,
	upstream string,
	requestID string,
	status int,
	outcome cache.Outcome,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		route.Config.Name,
		route.Config.Domain,
		route.Config.Type,
		route.Config.AuthMode(),
		route.ModuleKey,
		outcome,
	)
	fields["action"] = "proxy"
	fields["upstream"] = upstream
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildKey 将存储路径转换为 key；带查询串的请求追加 sha1 后缀，避免不同查询互相覆盖。
func buildKey(storagePath string, rawQuery []byte) asto.Key {
	if len(rawQuery) > 0 {
		sum := sha1.Sum(rawQuery)
		return asto.NewKey(storagePath + ".__qs." + hex.EncodeToString(sum[:]))
	}
	return asto.NewKey(storagePath)
}

func normalizeRequestPath(raw string) string {
	if raw == "" {
		raw = "/"
	}
	return path.Clean("/" + raw)
}

// determineCachePolicy 以仓库策略为基础，允许模块按路径调整，显式配置的 Validation 最终生效。
func determineCachePolicy(route *server.RepoRoute, hook *hookState) hubmodule.CachePolicy {
	policy := hubmodule.CachePolicy{
		AllowCache: true,
		Validation: route.CacheStrategy.ValidationMode,
	}
	if hook != nil && hook.def.CachePolicy != nil {
		policy = hook.def.CachePolicy(hook.ctx, hook.storage, policy)
	}
	if override, ok := hubmodule.ParseValidationMode(route.Config.Validation); ok && override != "" {
		policy.Validation = override
	}
	if hook == nil || buildKey(hook.storage, nil).IsRoot() {
		policy.AllowCache = false
	}
	return policy
}

func inferCachedContentType(storagePath string) string {
	switch {
	case strings.HasSuffix(storagePath, ".zip"):
		return "application/zip"
	case strings.HasSuffix(storagePath, ".json"):
		return "application/json"
	case strings.HasSuffix(storagePath, ".mod"):
		return "text/plain"
	case strings.HasSuffix(storagePath, ".info"):
		return "application/json"
	case strings.HasSuffix(storagePath, ".tgz"):
		return "application/octet-stream"
	case strings.HasSuffix(storagePath, "/@v/list"):
		return "text/plain"
	case strings.HasSuffix(storagePath, ".whl"):
		return "application/octet-stream"
	case strings.HasSuffix(storagePath, ".tar.gz"), strings.HasSuffix(storagePath, ".tar.bz2"):
		return "application/x-tar"
	}
	return ""
}

func resolveContentType(route *server.RepoRoute, hook *hookState, state *fetchState) string {
	if hook != nil && hook.def.ContentType != nil {
		if ct := hook.def.ContentType(hook.ctx, hook.storage); ct != "" {
			return ct
		}
	}
	if state != nil {
		if ct := state.contentTypeValue(); ct != "" {
			return ct
		}
	}
	return inferCachedContentType(hook.storage)
}

func isDockerManifestPath(clean string) bool {
	return strings.HasPrefix(clean, "/v2/") && strings.Contains(clean, "/manifests/")
}

func sniffDockerManifestContentType(data []byte) string {
	var manifest struct {
		MediaType string `json:"mediaType"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ""
	}
	return strings.TrimSpace(manifest.MediaType)
}

// routeLogger 为 route 相关日志附带统一字段。
func (h *Handler) routeLogger(route *server.RepoRoute, requestID string) logrus.FieldLogger {
	return h.logger.WithFields(logrus.Fields{
		"repo":       route.Config.Name,
		"module_key": route.ModuleKey,
		"request_id": requestID,
	})
}

func (h *Handler) observeUpstream(route *server.RepoRoute, resp *http.Response, err error) {
	if h.metrics == nil {
		return
	}
	if err != nil || resp == nil {
		h.metrics.ObserveUpstream(route.Config.Name, "error")
		return
	}
	h.metrics.ObserveUpstream(route.Config.Name, metrics.StatusClass(resp.StatusCode))
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cache.ErrUnavailable)
}
