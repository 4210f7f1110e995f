package docker

import (
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

const blobDigest = "sha256:a3ed95caeb02ffe68cdd9fd84406680ae93d633cb16422d00e8a7c22955b46d4"

func TestNormalizePathAddsLibraryForDockerHub(t *testing.T) {
	hub := &hubmodule.RequestContext{UpstreamHost: "registry-1.docker.io"}
	cases := []struct {
		ctx  *hubmodule.RequestContext
		in   string
		want string
	}{
		{hub, "/v2/nginx/manifests/latest", "/v2/library/nginx/manifests/latest"},
		{hub, "/v2/library/nginx/manifests/latest", "/v2/library/nginx/manifests/latest"},
		{hub, "/v2/team/nginx/manifests/latest", "/v2/team/nginx/manifests/latest"},
		{hub, "/v2/_catalog", "/v2/_catalog"},
		{&hubmodule.RequestContext{UpstreamHost: "registry.example.com"}, "/v2/nginx/manifests/latest", "/v2/nginx/manifests/latest"},
	}
	for _, tc := range cases {
		if got, _ := normalizePath(tc.ctx, tc.in, nil); got != tc.want {
			t.Fatalf("normalizePath(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSplitRepoPath(t *testing.T) {
	name, rest, ok := splitRepoPath("/v2/library/nginx/manifests/latest")
	if !ok || name != "library/nginx" || rest != "/manifests/latest" {
		t.Fatalf("unexpected split result name=%s rest=%s ok=%v", name, rest, ok)
	}
	if _, _, ok := splitRepoPath("/v2/_catalog"); ok {
		t.Fatalf("expected catalog path to be ignored")
	}
	if _, _, ok := splitRepoPath("/v2/blobs/x"); ok {
		t.Fatalf("endpoint without repository name must be rejected")
	}
}

func TestCachePolicy(t *testing.T) {
	policy := cachePolicy(nil, "/v2/library/nginx/blobs/"+blobDigest, hubmodule.CachePolicy{})
	if !policy.AllowCache || policy.Validation != hubmodule.ValidationModeChecksum {
		t.Fatalf("blob should be checksum verified, got %+v", policy)
	}
	policy = cachePolicy(nil, "/v2/library/nginx/manifests/latest", hubmodule.CachePolicy{})
	if !policy.AllowCache || policy.Validation != hubmodule.ValidationModeTTL {
		t.Fatalf("tag manifest should use ttl, got %+v", policy)
	}
	if cachePolicy(nil, "/v2/_catalog", hubmodule.CachePolicy{AllowCache: true}).AllowCache {
		t.Fatalf("catalog must bypass cache")
	}
	if cachePolicy(nil, "/v2/", hubmodule.CachePolicy{AllowCache: true}).AllowCache {
		t.Fatalf("api root must bypass cache")
	}
}

func TestExpectedDigest(t *testing.T) {
	if got := expectedDigest(nil, "/v2/library/nginx/blobs/"+blobDigest); got != blobDigest {
		t.Fatalf("unexpected blob digest %q", got)
	}
	if got := expectedDigest(nil, "/v2/library/nginx/manifests/"+blobDigest); got != blobDigest {
		t.Fatalf("unexpected manifest digest %q", got)
	}
	if got := expectedDigest(nil, "/v2/library/nginx/manifests/latest"); got != "" {
		t.Fatalf("tag should not yield a digest, got %q", got)
	}
	if got := expectedDigest(nil, "/v2/library/nginx/blobs/sha256:short"); got != "" {
		t.Fatalf("malformed digest should be ignored, got %q", got)
	}
}

func TestContentType(t *testing.T) {
	if ct := contentType(nil, "/v2/library/nginx/tags/list"); ct != "application/json" {
		t.Fatalf("unexpected tags content type %q", ct)
	}
	if ct := contentType(nil, "/v2/library/nginx/blobs/"+blobDigest); ct != "" {
		t.Fatalf("blob content type should be left to upstream, got %q", ct)
	}
}
