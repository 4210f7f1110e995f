package npm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

func TestCachePolicyForTarball(t *testing.T) {
	policy := cachePolicy(nil, "/pkg/-/pkg-1.0.0.tgz", hubmodule.CachePolicy{})
	if policy.Validation != hubmodule.ValidationModeAlways {
		t.Fatalf("tarball should be immutable, got %s", policy.Validation)
	}
	if !policy.AllowCache {
		t.Fatalf("tarball should allow cache")
	}

	policy = cachePolicy(nil, "/pkg/package.json", hubmodule.CachePolicy{})
	if policy.Validation != hubmodule.ValidationModeTTL {
		t.Fatalf("metadata should use ttl, got %s", policy.Validation)
	}
}

func TestStorageKeySeparatesMetadata(t *testing.T) {
	cases := map[string]string{
		"/lodash":                   "/lodash/package.json",
		"/@types/node/":             "/@types/node/package.json",
		"/":                         "/package.json",
		"/lodash/-/lodash-4.17.tgz": "/lodash/-/lodash-4.17.tgz",
	}
	for in, want := range cases {
		if got := storageKey(nil, in); got != want {
			t.Fatalf("storageKey(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestContentType(t *testing.T) {
	if ct := contentType(nil, "/lodash/package.json"); ct != "application/json" {
		t.Fatalf("unexpected metadata content type %q", ct)
	}
	if ct := contentType(nil, "/lodash/-/lodash-4.17.tgz"); ct != "application/octet-stream" {
		t.Fatalf("unexpected tarball content type %q", ct)
	}
}

func TestLocalTarball(t *testing.T) {
	cases := map[string]string{
		"https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz":         "https://npm.local/lodash/-/lodash-4.17.21.tgz",
		"https://registry.npmjs.org/@types/node/-/node-20.0.0.tgz":       "https://npm.local/@types/node/-/node-20.0.0.tgz",
		"https://mirror.example/npm/@types%2fnode/-/node-20.0.0.tgz":     "https://npm.local/@types/node/-/node-20.0.0.tgz",
		"https://mirror.example/base/path/left-pad/-/left-pad-1.3.0.tgz": "https://npm.local/left-pad/-/left-pad-1.3.0.tgz",
		"not-a-url":                      "",
		"https://registry.npmjs.org/foo": "",
	}
	for in, want := range cases {
		if got := localTarball("npm.local", in); got != want {
			t.Fatalf("localTarball(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestRewriteResponsePointsTarballsAtRepository(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "npm.local"}
	body := []byte(`{"name":"lodash","dist-tags":{"latest":"4.17.21"},"versions":{"4.17.21":{"dist":{"shasum":"x","tarball":"https://registry.npmjs.org/lodash/-/lodash-4.17.21.tgz"}}}}`)
	_, headers, out, err := rewriteResponse(ctx, 200, nil, body, "/lodash/package.json")
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected content type %q", headers["Content-Type"])
	}
	var doc struct {
		DistTags map[string]string `json:"dist-tags"`
		Versions map[string]struct {
			Dist struct {
				Shasum  string `json:"shasum"`
				Tarball string `json:"tarball"`
			} `json:"dist"`
		} `json:"versions"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := doc.Versions["4.17.21"].Dist.Tarball; got != "https://npm.local/lodash/-/lodash-4.17.21.tgz" {
		t.Fatalf("tarball not rewritten: %s", got)
	}
	if doc.Versions["4.17.21"].Dist.Shasum != "x" || doc.DistTags["latest"] != "4.17.21" {
		t.Fatalf("unrelated fields must survive: %s", out)
	}
}

func TestRewriteResponseIgnoresTarballsAndNonJSON(t *testing.T) {
	ctx := &hubmodule.RequestContext{Domain: "npm.local"}
	for _, tc := range []struct{ path, body string }{
		{"/lodash/-/lodash-4.17.21.tgz", "binary"},
		{"/lodash/package.json", "<html>oops</html>"},
		{"/lodash/package.json", `{"name":"lodash"}`},
	} {
		_, _, out, err := rewriteResponse(ctx, 200, nil, []byte(tc.body), tc.path)
		if err != nil || string(out) != tc.body {
			t.Fatalf("%s should pass through, got %q err=%v", tc.path, out, err)
		}
	}
}

func TestModuleRegistered(t *testing.T) {
	meta, ok := hubmodule.Resolve("npm")
	if !ok {
		t.Fatalf("npm module not registered")
	}
	if meta.CacheStrategy.TTLHint != npmDefaultTTL || meta.CacheStrategy.ValidationMode != hubmodule.ValidationModeTTL {
		t.Fatalf("unexpected default strategy: %+v", meta.CacheStrategy)
	}
	want := []string{"storage_key", "rewrite_response", "cache_policy", "content_type"}
	if got := meta.Hooks.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected hooks %v", got)
	}

	strategy := meta.CacheStrategy.Apply(hubmodule.StrategyOptions{ValidationOverride: hubmodule.ValidationModeRefresh})
	if strategy.TTLHint != npmDefaultTTL || strategy.ValidationMode != hubmodule.ValidationModeRefresh {
		t.Fatalf("override should only replace validation, got %+v", strategy)
	}
}
