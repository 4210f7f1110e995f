package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/config"
)

func TestRouterHostMapping(t *testing.T) {
	cases := []struct {
		name      string
		host      string
		status    int
		wantRepo  string
		bodyMatch string
	}{
		{name: "exact host", host: "docker.repo.local", status: fiber.StatusNoContent, wantRepo: "docker"},
		{name: "mixed case with port", host: "Docker.Repo.Local:5000", status: fiber.StatusNoContent, wantRepo: "docker"},
		{name: "second repo", host: "npm.repo.local", status: fiber.StatusNoContent, wantRepo: "npm"},
		{name: "unknown host", host: "unknown.local", status: fiber.StatusNotFound, bodyMatch: `"host_unmapped"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newRouterFixture(t)
			resp := app.get(t, tc.host, "/v2/", nil)
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tc.status {
				t.Fatalf("状态码 %d，期望 %d (body=%s)", resp.StatusCode, tc.status, body)
			}
			if app.proxy.repo != tc.wantRepo {
				t.Fatalf("命中仓库 %q，期望 %q", app.proxy.repo, tc.wantRepo)
			}
			if tc.bodyMatch != "" && !strings.Contains(string(body), tc.bodyMatch) {
				t.Fatalf("响应体应包含 %s，实际 %s", tc.bodyMatch, body)
			}
			if resp.Header.Get(headerRequestID) == "" {
				t.Fatalf("每个响应都应带 X-Request-ID")
			}
		})
	}
}

func TestRouterKeepsClientRequestID(t *testing.T) {
	app := newRouterFixture(t)

	resp := app.get(t, "docker.repo.local", "/v2/", http.Header{headerRequestID: {"trace-42"}})
	if got := resp.Header.Get(headerRequestID); got != "trace-42" {
		t.Fatalf("应沿用客户端 request id，实际 %s", got)
	}
	if app.proxy.requestID != "trace-42" {
		t.Fatalf("handler 读取到的 request id 不一致: %s", app.proxy.requestID)
	}

	oversized := strings.Repeat("x", maxRequestIDSize+1)
	resp = app.get(t, "docker.repo.local", "/v2/", http.Header{headerRequestID: {oversized}})
	if got := resp.Header.Get(headerRequestID); got == "" || got == oversized {
		t.Fatalf("超长 request id 应被替换，实际 %q", got)
	}
}

func TestRouterSkipsHostLookupForDiagnostics(t *testing.T) {
	app := newRouterFixture(t)
	app.Get("/-/ping", func(c fiber.Ctx) error { return c.SendString("pong") })

	resp := app.get(t, "unknown.local", "/-/ping", nil)
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "pong" {
		t.Fatalf("诊断路由不应做 Host 匹配，实际 %d %s", resp.StatusCode, body)
	}
	if app.proxy.repo != "" {
		t.Fatalf("诊断请求不应进入代理 handler")
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	logger := logrus.New()
	cases := map[string]AppOptions{
		"logger":   {},
		"registry": {Logger: logger},
		"proxy":    {Logger: logger, Registry: &RepoRegistry{}},
		"port":     {Logger: logger, Registry: &RepoRegistry{}, Proxy: &proxyRecorder{}},
	}
	for missing, opts := range cases {
		if _, err := NewApp(opts); err == nil {
			t.Fatalf("缺少 %s 时应返回错误", missing)
		}
	}
}

type routerFixture struct {
	*fiber.App
	proxy *proxyRecorder
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000, CacheTTL: config.Duration(3600)},
		Repos: []config.RepoConfig{
			{Name: "docker", Domain: "docker.repo.local", Type: "docker", Upstream: "https://registry-1.docker.io"},
			{Name: "npm", Domain: "npm.repo.local", Type: "npm", Upstream: "https://registry.npmjs.org"},
		},
	}
	registry, err := NewRepoRegistry(cfg, RegistryOptions{})
	if err != nil {
		t.Fatalf("构建仓库路由表失败: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	recorder := &proxyRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Registry:   registry,
		Proxy:      recorder,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("构建应用失败: %v", err)
	}
	return &routerFixture{App: app, proxy: recorder}
}

func (f *routerFixture) get(t *testing.T, host, path string, header http.Header) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
	req.Host = host
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	resp, err := f.Test(req)
	if err != nil {
		t.Fatalf("app.Test 失败: %v", err)
	}
	return resp
}

// proxyRecorder 记录最近一次被分发到的仓库。
type proxyRecorder struct {
	repo      string
	requestID string
}

func (p *proxyRecorder) Handle(c fiber.Ctx, route *RepoRoute) error {
	p.repo = route.Config.Name
	p.requestID = RequestID(c)
	return c.SendStatus(fiber.StatusNoContent)
}
