package pypi

import (
	"strings"
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

func TestNormalizePathAddsSimplePrefix(t *testing.T) {
	ctx := &hubmodule.RequestContext{RepoType: "pypi"}
	cases := map[string]string{
		"/requests":                          "/simple/requests/",
		"/simple/requests":                   "/simple/requests/",
		"/packages/ab/cd/requests-2.0.whl":   "/packages/ab/cd/requests-2.0.whl",
		"/files/https/host/requests-2.0.whl": "/files/https/host/requests-2.0.whl",
		"/_health":                           "/_health",
		"/":                                  "/",
	}
	for in, want := range cases {
		if got, _ := normalizePath(ctx, in, nil); got != want {
			t.Fatalf("normalizePath(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestResolveUpstreamMirrorsFiles(t *testing.T) {
	target := resolveUpstream(nil, "", "/files/https/example.com/pkg.tgz", nil)
	if target != "https://example.com/pkg.tgz" {
		t.Fatalf("unexpected upstream target: %s", target)
	}
	if target := resolveUpstream(nil, "", "/simple/requests/", nil); target != "" {
		t.Fatalf("simple path should use the default upstream, got %s", target)
	}
}

func TestStorageKey(t *testing.T) {
	if key := storageKey(nil, "/simple/requests/"); key != "/simple/requests/index.html" {
		t.Fatalf("unexpected index key %s", key)
	}
	if key := storageKey(nil, "/"); key != "/index.html" {
		t.Fatalf("unexpected root key %s", key)
	}
	if key := storageKey(nil, "/files/https/host/pkg.whl"); key != "/files/https/host/pkg.whl" {
		t.Fatalf("unexpected file key %s", key)
	}
}

func TestCachePolicy(t *testing.T) {
	if p := cachePolicy(nil, "/files/https/host/pkg-1.0.whl", hubmodule.CachePolicy{}); p.Validation != hubmodule.ValidationModeAlways {
		t.Fatalf("wheel should be immutable, got %s", p.Validation)
	}
	if p := cachePolicy(nil, "/simple/requests/index.html", hubmodule.CachePolicy{}); p.Validation != hubmodule.ValidationModeTTL || !p.AllowCache {
		t.Fatalf("index should use ttl, got %+v", p)
	}
}

func TestRewriteResponseAdjustsLinks(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "cache.example"}
	body := []byte(`<html><body><a href="https://files.pythonhosted.org/package.whl#sha256=ab" data-dist-info-metadata="sha256=cd">link</a><a href="../other/">rel</a></body></html>`)
	_, headers, rewritten, err := rewriteResponse(ctx, 200, map[string]string{"Content-Type": "text/html"}, body, "/simple/requests/")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if headers["Content-Type"] != simpleHTMLType {
		t.Fatalf("unexpected content type %s", headers["Content-Type"])
	}
	out := string(rewritten)
	if !strings.Contains(out, "https://cache.example/files/https/files.pythonhosted.org/package.whl#sha256=ab") {
		t.Fatalf("expected rewritten link, got %s", out)
	}
	if !strings.Contains(out, `href="../other/"`) || !strings.Contains(out, `data-dist-info-metadata="sha256=cd"`) {
		t.Fatalf("relative values must be kept, got %s", out)
	}
}

func TestRewriteResponseJSON(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "cache.example"}
	body := []byte(`{"meta":{"api-version":"1.0"},"files":[{"filename":"a.whl","url":"https://files.pythonhosted.org/a.whl"}]}`)
	_, headers, rewritten, err := rewriteResponse(ctx, 200, map[string]string{"Content-Type": simpleJSONType}, body, "/simple/a/")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if headers["Content-Type"] != simpleJSONType {
		t.Fatalf("unexpected content type %s", headers["Content-Type"])
	}
	if !strings.Contains(string(rewritten), "https://cache.example/files/https/files.pythonhosted.org/a.whl") {
		t.Fatalf("json url not rewritten: %s", rewritten)
	}
	if !strings.Contains(string(rewritten), `"api-version":"1.0"`) {
		t.Fatalf("meta must survive: %s", rewritten)
	}
}

func TestRewriteSkipsDistributionFiles(t *testing.T) {
	body := []byte("PK\x03\x04")
	_, _, out, err := rewriteResponse(&hubmodule.RequestContext{}, 200, nil, body, "/files/https/h/a.whl")
	if err != nil || string(out) != string(body) {
		t.Fatalf("distribution must pass through")
	}
}
