package maven

import (
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

func TestCachePolicy(t *testing.T) {
	immutable := []string{
		"/org/example/lib/1.0/lib-1.0.jar",
		"/org/example/lib/1.0/lib-1.0.pom",
		"/org/example/lib/1.0/lib-1.0.jar.sha1",
	}
	for _, p := range immutable {
		if policy := cachePolicy(nil, p, hubmodule.CachePolicy{}); !policy.AllowCache || policy.Validation != hubmodule.ValidationModeAlways {
			t.Fatalf("expected %s to be immutable, got %+v", p, policy)
		}
	}

	refreshing := []string{
		"/org/example/lib/maven-metadata.xml",
		"/org/example/lib/maven-metadata.xml.sha1",
		"/org/example/lib/1.1-SNAPSHOT/lib-1.1-20240101.120000-1.jar",
	}
	for _, p := range refreshing {
		if policy := cachePolicy(nil, p, hubmodule.CachePolicy{}); policy.Validation != hubmodule.ValidationModeTTL {
			t.Fatalf("expected %s to use ttl, got %s", p, policy.Validation)
		}
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"/a/b/1.0/b-1.0.jar":       "application/java-archive",
		"/a/b/1.0/b-1.0.pom":       "application/xml",
		"/a/b/maven-metadata.xml":  "application/xml",
		"/a/b/1.0/b-1.0.jar.sha1":  "text/plain",
		"/a/b/1.0/b-1.0.module":    "application/json",
		"/a/b/1.0/b-1.0.unknownxx": "",
	}
	for p, want := range cases {
		if got := contentType(nil, p); got != want {
			t.Fatalf("contentType(%s) = %q, want %q", p, got, want)
		}
	}
}

func TestModuleRegistered(t *testing.T) {
	meta, ok := hubmodule.Resolve("maven")
	if !ok {
		t.Fatalf("maven module not registered")
	}
	if meta.CacheStrategy.ValidationMode != hubmodule.ValidationModeAlways {
		t.Fatalf("unexpected default validation: %s", meta.CacheStrategy.ValidationMode)
	}
	if meta.CacheStrategy.TTLHint != mavenDefaultTTL {
		t.Fatalf("unexpected ttl hint: %s", meta.CacheStrategy.TTLHint)
	}
	if meta.Hooks.CachePolicy == nil {
		t.Fatalf("maven cache policy hook missing")
	}
}
