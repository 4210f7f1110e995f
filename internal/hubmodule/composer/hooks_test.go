package composer

import (
	"encoding/json"
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

func TestNormalizePathDropsDistQuery(t *testing.T) {
	path, raw := normalizePath(nil, "/dist/https/example.com/file.zip", []byte("token=1"))
	if raw != nil {
		t.Fatalf("expected query to be dropped")
	}
	if path != "/dist/https/example.com/file.zip" {
		t.Fatalf("unexpected path %s", path)
	}
	if _, raw := normalizePath(nil, "/search.json", []byte("q=a")); string(raw) != "q=a" {
		t.Fatalf("non-dist query should be kept, got %q", raw)
	}
}

func TestResolveUpstreamMirrorsDist(t *testing.T) {
	target := resolveUpstream(nil, "", "/dist/https/example.com/file.zip", []byte("token=1"))
	if target != "https://example.com/file.zip?token=1" {
		t.Fatalf("unexpected upstream %s", target)
	}
	if target := resolveUpstream(nil, "", "/p2/a/b.json", nil); target != "" {
		t.Fatalf("metadata should use the repository upstream, got %s", target)
	}
	if target := resolveUpstream(nil, "", "/dist/ftp/example.com/file.zip", nil); target != "" {
		t.Fatalf("only http(s) mirrors are allowed, got %s", target)
	}
}

func TestCachePolicy(t *testing.T) {
	if p := cachePolicy(nil, "/dist/https/example.com/file.zip", hubmodule.CachePolicy{}); !p.AllowCache || p.Validation != hubmodule.ValidationModeAlways {
		t.Fatalf("dist should be immutable, got %+v", p)
	}
	if p := cachePolicy(nil, "/p2/a/b.json", hubmodule.CachePolicy{}); !p.AllowCache || p.Validation != hubmodule.ValidationModeTTL {
		t.Fatalf("metadata should use ttl, got %+v", p)
	}
	if p := cachePolicy(nil, "/packages.json", hubmodule.CachePolicy{}); !p.AllowCache || p.Validation != hubmodule.ValidationModeTTL {
		t.Fatalf("root index should use ttl, got %+v", p)
	}
	if p := cachePolicy(nil, "/search.json", hubmodule.CachePolicy{AllowCache: true}); p.AllowCache {
		t.Fatalf("search should bypass cache")
	}
}

func TestRewriteMetadataByVersionMap(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "cache.example"}
	body := []byte(`{"packages":{"a/b":{"1.0.0":{"dist":{"url":"https://api.github.com/repos/org/repo/zipball/ref","reference":"abc123","type":"zip"}}}}}`)
	_, headers, rewritten, err := rewriteResponse(ctx, 200, map[string]string{}, body, "/p2/a/b.json")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if headers["Content-Type"] != "application/json" {
		t.Fatalf("expected json content type")
	}
	var payload struct {
		Packages map[string]map[string]struct {
			Name string `json:"name"`
			Dist struct {
				URL       string `json:"url"`
				Reference string `json:"reference"`
			} `json:"dist"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(rewritten, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	version := payload.Packages["a/b"]["1.0.0"]
	expected := "https://cache.example/dist/https/api.github.com/repos/org/repo/zipball/ref"
	if version.Dist.URL != expected {
		t.Fatalf("expected dist url %s, got %s", expected, version.Dist.URL)
	}
	if version.Dist.Reference != "abc123" {
		t.Fatalf("unrelated fields must survive, got %q", version.Dist.Reference)
	}
	if version.Name != "a/b" {
		t.Fatalf("expected package name to be filled, got %v", version.Name)
	}
}

func TestRewriteMetadataVersionList(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "cache.example"}
	body := []byte(`{"minified":"composer/2.0","packages":{"a/b":[{"name":"a/b","version":"1.0.0","dist":{"url":"https://codeload.example/a/b.zip"}}]}}`)
	_, _, rewritten, err := rewriteResponse(ctx, 200, nil, body, "/p2/a/b.json")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	var payload struct {
		Minified string `json:"minified"`
		Packages map[string][]struct {
			Dist struct {
				URL string `json:"url"`
			} `json:"dist"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(rewritten, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Minified != "composer/2.0" {
		t.Fatalf("top level fields must survive, got %q", payload.Minified)
	}
	if got := payload.Packages["a/b"][0].Dist.URL; got != "https://cache.example/dist/https/codeload.example/a/b.zip" {
		t.Fatalf("unexpected dist url %s", got)
	}
}

func TestRewritePackagesRoot(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "cache.example"}
	body := []byte(`{"metadata-url":"https://repo.packagist.org/p2/%package%.json","providers-url":"/p/%package%$%hash%.json"}`)
	_, headers, rewritten, err := rewriteResponse(ctx, 200, map[string]string{}, body, "/packages.json")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if headers["Content-Type"] != "application/json" {
		t.Fatalf("expected json content type")
	}
	var payload map[string]any
	if err := json.Unmarshal(rewritten, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["metadata-url"] != "https://cache.example/p2/%package%.json" {
		t.Fatalf("metadata URL not rewritten: %v", payload["metadata-url"])
	}
	if payload["providers-url"] != "https://cache.example/p/%package%$%hash%.json" {
		t.Fatalf("providers URL not rewritten: %v", payload["providers-url"])
	}
}

func TestRewriteLeavesOtherPathsAlone(t *testing.T) {
	body := []byte("zip-bytes")
	_, _, out, err := rewriteResponse(&hubmodule.RequestContext{Domain: "cache.example"}, 200, nil, body, "/dist/https/h/a.zip")
	if err != nil || string(out) != "zip-bytes" {
		t.Fatalf("dist payload must pass through, got %q err=%v", out, err)
	}
}
