package hubmodule

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryResolveAndList(t *testing.T) {
	r := NewRegistry()

	for _, key := range []string{"npm", "maven", "docker"} {
		if err := r.Register(ModuleMetadata{Key: key}); err != nil {
			t.Fatalf("register %s failed: %v", key, err)
		}
	}

	if _, ok := r.Resolve("MAVEN"); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}
	if _, ok := r.Resolve(""); ok {
		t.Fatalf("blank key should not resolve")
	}

	list := r.List()
	if len(list) != 3 || list[0].Key != "docker" || list[2].Key != "npm" {
		t.Fatalf("unexpected order: %+v", list)
	}
	keys := r.Keys()
	keys[0] = "mutated"
	if r.Keys()[0] != "docker" {
		t.Fatalf("Keys must return a copy")
	}
}

func TestRegistryRejectsInvalidModules(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(ModuleMetadata{Key: "files"}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := r.Register(ModuleMetadata{Key: " FILES "}); !errors.Is(err, ErrModuleExists) {
		t.Fatalf("expected ErrModuleExists, got %v", err)
	}
	if err := r.Register(ModuleMetadata{Key: "  "}); !errors.Is(err, ErrInvalidModule) {
		t.Fatalf("blank key should fail, got %v", err)
	}
	bad := ModuleMetadata{Key: "odd", CacheStrategy: CacheStrategyProfile{ValidationMode: "sometimes"}}
	if err := r.Register(bad); !errors.Is(err, ErrInvalidModule) {
		t.Fatalf("unknown validation should fail, got %v", err)
	}
}

func TestHooksEmptyAndNames(t *testing.T) {
	if !(Hooks{}).Empty() {
		t.Fatalf("zero hooks should be empty")
	}
	h := Hooks{ContentType: func(*RequestContext, string) string { return "" }}
	if h.Empty() {
		t.Fatalf("hooks with content type should not be empty")
	}
	if names := h.Names(); len(names) != 1 || names[0] != "content_type" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestResolveStrategyOverrides(t *testing.T) {
	meta := ModuleMetadata{
		Key: "npm",
		CacheStrategy: CacheStrategyProfile{
			TTLHint:        30 * time.Minute,
			ValidationMode: ValidationModeAlways,
		},
	}

	strategy := ResolveStrategy(meta, StrategyOptions{})
	if strategy.TTLHint != 30*time.Minute || strategy.ValidationMode != ValidationModeAlways {
		t.Fatalf("defaults should be kept: %+v", strategy)
	}

	strategy = ResolveStrategy(meta, StrategyOptions{
		TTLOverride:        time.Minute,
		ValidationOverride: ValidationModeRefresh,
	})
	if strategy.TTLHint != time.Minute {
		t.Fatalf("expected ttl override, got %s", strategy.TTLHint)
	}
	if strategy.ValidationMode != ValidationModeRefresh {
		t.Fatalf("expected refresh override, got %s", strategy.ValidationMode)
	}

	strategy = ResolveStrategy(ModuleMetadata{Key: "bare"}, StrategyOptions{})
	if strategy.ValidationMode != ValidationModeTTL {
		t.Fatalf("empty validation should normalize to ttl, got %s", strategy.ValidationMode)
	}
}

func TestParseValidationMode(t *testing.T) {
	cases := map[string]struct {
		want ValidationMode
		ok   bool
	}{
		"":          {"", true},
		"default":   {"", true},
		"Always":    {ValidationModeAlways, true},
		" ttl ":     {ValidationModeTTL, true},
		"checksum":  {ValidationModeChecksum, true},
		"refresh":   {ValidationModeRefresh, true},
		"etag":      {"", false},
		"sometimes": {"", false},
	}
	for raw, tc := range cases {
		got, ok := ParseValidationMode(raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseValidationMode(%q) = %q,%v want %q,%v", raw, got, ok, tc.want, tc.ok)
		}
	}
}
