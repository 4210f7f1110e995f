package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/cache"
	"github.com/artipie/artipie/internal/server"
)

// upstreamRequest 是进入缓存前对下游请求的快照。回源可能由其他等待者继续驱动，
// 因此不能在闭包里引用 fiber.Ctx。
type upstreamRequest struct {
	url           *url.URL
	header        http.Header
	forwardedHost string
	clientIP      string
	proto         string
}

// fetchState 记录本请求亲自触发的回源响应头，用于首次返回时的 Content-Type。
type fetchState struct {
	mu          sync.Mutex
	status      int
	contentType string
}

func (s *fetchState) record(resp *http.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = resp.StatusCode
	s.contentType = resp.Header.Get("Content-Type")
}

func (s *fetchState) contentTypeValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != http.StatusOK {
		return ""
	}
	return s.contentType
}

func snapshotRequest(c fiber.Ctx, route *server.RepoRoute, hook *hookState) *upstreamRequest {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		if name := string(key); server.ForwardRequestHeader(name) {
			header.Add(name, string(value))
		}
	})
	return &upstreamRequest{
		url:           resolveUpstreamURL(route.UpstreamURL, hook),
		header:        header,
		forwardedHost: c.Hostname(),
		clientIP:      c.IP(),
		proto:         c.Protocol(),
	}
}

// resolveUpstreamURL 优先使用模块 hook 给出的地址，否则把请求路径拼接到上游 base path 之后。
func resolveUpstreamURL(base *url.URL, hook *hookState) *url.URL {
	clean := "/"
	var rawQuery []byte
	if hook != nil {
		if hook.clean != "" {
			clean = hook.clean
		}
		rawQuery = hook.rawQuery
		if hook.def.ResolveUpstream != nil {
			if u := hook.def.ResolveUpstream(hook.ctx, base.String(), clean, rawQuery); u != "" {
				if parsed, err := url.Parse(u); err == nil {
					return parsed
				}
			}
		}
	}
	target := *base
	target.Path = joinUpstreamPath(base.Path, clean)
	target.RawPath = ""
	target.RawQuery = string(rawQuery)
	target.Fragment = ""
	return &target
}

func joinUpstreamPath(basePath, clean string) string {
	joined := path.Join("/", basePath, clean)
	if strings.HasSuffix(clean, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// remote 构建一次回源：200 返回内容，4xx 视为不存在，5xx/429/鉴权失败视为上游不可用。
func (h *Handler) remote(route *server.RepoRoute, req *upstreamRequest, requestID string, state *fetchState) cache.Remote {
	return cache.RemoteFunc(func(ctx context.Context) (asto.Content, error) {
		resp, err := h.fetch(ctx, route, req, http.MethodGet, req.url, requestID)
		if err != nil {
			return nil, err
		}
		state.record(resp)

		switch {
		case resp.StatusCode == http.StatusOK:
			return asto.FromReader(resp.Body, resp.ContentLength), nil
		case resp.StatusCode >= http.StatusInternalServerError,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusUnauthorized:
			drainAndClose(resp.Body)
			return nil, unavailable("upstream %s returned %d", req.url.Redacted(), resp.StatusCode)
		default:
			drainAndClose(resp.Body)
			return nil, nil
		}
	})
}

// fetch 发起上游请求；遇到可重试的鉴权响应时换取凭证后重放一次。
func (h *Handler) fetch(
	ctx context.Context,
	route *server.RepoRoute,
	req *upstreamRequest,
	method string,
	target *url.URL,
	requestID string,
) (*http.Response, error) {
	resp, err := h.do(ctx, route, req, method, target, "")
	if err != nil || !shouldRetryAuth(route, resp) {
		return resp, err
	}
	h.logAuth(route, target, requestID, resp.StatusCode, false)

	authorization, err := h.retryAuthorization(ctx, route, resp)
	drainAndClose(resp.Body)
	if err != nil {
		return nil, err
	}

	resp, err = h.do(ctx, route, req, method, target, authorization)
	if err == nil && isAuthFailure(resp.StatusCode) {
		h.logAuth(route, target, requestID, resp.StatusCode, true)
	}
	return resp, err
}

func (h *Handler) do(
	ctx context.Context,
	route *server.RepoRoute,
	req *upstreamRequest,
	method string,
	target *url.URL,
	authorization string,
) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.header.Clone()
	httpReq.Host = target.Host
	req.forwardTo(httpReq.Header, routePort(route))

	switch {
	case authorization != "":
		httpReq.Header.Set("Authorization", authorization)
	case route.Config.HasCredentials():
		httpReq.SetBasicAuth(route.Config.Username, route.Config.Password)
	}

	resp, err := h.clients.For(route.ProxyURL).Do(httpReq)
	h.observeUpstream(route, resp, err)
	return resp, err
}

// forwardTo 写入 X-Forwarded-*，已有的 X-Forwarded-For 链会被追加而不是覆盖。
func (r *upstreamRequest) forwardTo(header http.Header, port string) {
	if r.forwardedHost != "" {
		header.Set("X-Forwarded-Host", r.forwardedHost)
	}
	if r.clientIP != "" {
		chain := r.clientIP
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			chain = prior + ", " + r.clientIP
		}
		header.Set("X-Forwarded-For", chain)
	}
	if r.proto != "" {
		header.Set("X-Forwarded-Proto", r.proto)
	}
	header.Set("X-Forwarded-Port", port)
}

func routePort(route *server.RepoRoute) string {
	if route == nil || route.ListenPort <= 0 {
		return "0"
	}
	return fmt.Sprintf("%d", route.ListenPort)
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}
