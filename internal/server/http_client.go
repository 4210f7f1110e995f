package server

import (
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"
	"time"

	"github.com/artipie/artipie/internal/config"
)

const defaultUpstreamTimeout = 30 * time.Second

// NewUpstreamClient 构建所有仓库共享的上游 client；超时取 UpstreamTimeout，缺省 30s。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := defaultUpstreamTimeout
	if cfg != nil {
		if configured := cfg.Global.UpstreamTimeout.DurationValue(); configured > 0 {
			timeout = configured
		}
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          256,
			MaxIdleConnsPerHost:   64,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// ClientPool 为配置了 Proxy 的仓库派生 client，同一代理地址共享连接池。
type ClientPool struct {
	base    *http.Client
	mu      sync.Mutex
	byProxy map[string]*http.Client
}

func NewClientPool(base *http.Client) *ClientPool {
	if base == nil {
		base = http.DefaultClient
	}
	return &ClientPool{base: base, byProxy: map[string]*http.Client{}}
}

// For 返回经 proxy 转发的 client；proxy 为空时返回基础 client。
func (p *ClientPool) For(proxy *url.URL) *http.Client {
	if proxy == nil {
		return p.base
	}
	key := proxy.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.byProxy[key]; ok {
		return client
	}
	transport := &http.Transport{}
	if base, ok := p.base.Transport.(*http.Transport); ok {
		transport = base.Clone()
	}
	transport.Proxy = http.ProxyURL(proxy)
	client := *p.base
	client.Transport = transport
	p.byProxy[key] = &client
	return &client
}

// droppedRequestHeaders 不转发给上游：hop-by-hop 头（RFC 7230 6.1）、客户端凭证，
// 以及会让上游返回部分或 304 响应、从而无法写入缓存的条件/范围请求头。
var droppedRequestHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Host":                {},
	"Authorization":       {},
	"Cookie":              {},
	"Accept-Encoding":     {},
	"Content-Length":      {},
	"Range":               {},
	"If-Range":            {},
	"If-Match":            {},
	"If-None-Match":       {},
	"If-Modified-Since":   {},
	"If-Unmodified-Since": {},
}

// ForwardRequestHeader reports whether a client request header may be sent upstream.
func ForwardRequestHeader(name string) bool {
	_, dropped := droppedRequestHeaders[textproto.CanonicalMIMEHeaderKey(name)]
	return !dropped
}
