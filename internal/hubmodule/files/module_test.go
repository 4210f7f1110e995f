package files

import (
	"testing"

	"github.com/artipie/artipie/internal/hubmodule"
)

func TestFilesModule(t *testing.T) {
	meta, ok := hubmodule.Resolve("files")
	if !ok {
		t.Fatalf("files module not registered")
	}
	if meta.CacheStrategy.ValidationMode != hubmodule.ValidationModeAlways {
		t.Fatalf("unexpected validation: %s", meta.CacheStrategy.ValidationMode)
	}
	if !meta.Hooks.Empty() {
		t.Fatalf("files module should rely on the generic pipeline, got hooks %v", meta.Hooks.Names())
	}
	strategy := hubmodule.ResolveStrategy(meta, hubmodule.StrategyOptions{ValidationOverride: hubmodule.ValidationModeTTL})
	if strategy.ValidationMode != hubmodule.ValidationModeTTL {
		t.Fatalf("repository override should win, got %s", strategy.ValidationMode)
	}
}
