// Package astotest is a conformance suite for asto.Storage implementations.
// Backend packages call TestStorage from their own tests so every backend is
// held to the same contract.
package astotest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/artipie/artipie/internal/asto"
)

// TestStorage runs the full suite. The storage must be empty.
func TestStorage(t *testing.T, storage asto.Storage) {
	t.Run("SaveAndValue", func(t *testing.T) {
		testSaveAndValue(t, storage)
	})
	t.Run("Overwrite", func(t *testing.T) {
		testOverwrite(t, storage)
	})
	t.Run("MissingValue", func(t *testing.T) {
		testMissingValue(t, storage)
	})
	t.Run("RootKey", func(t *testing.T) {
		testRootKey(t, storage)
	})
	t.Run("Delete", func(t *testing.T) {
		testDelete(t, storage)
	})
	t.Run("Metadata", func(t *testing.T) {
		testMetadata(t, storage)
	})
	t.Run("List", func(t *testing.T) {
		testList(t, storage)
	})
	t.Run("FailedContentStoresNothing", func(t *testing.T) {
		testFailedContent(t, storage)
	})
	t.Run("UnknownSize", func(t *testing.T) {
		testUnknownSize(t, storage)
	})
}

func mustSave(t *testing.T, storage asto.Storage, key asto.Key, data string) {
	t.Helper()
	if err := storage.Save(context.Background(), key, asto.FromBytes([]byte(data))); err != nil {
		t.Fatalf("Save(%s): got error %v, want nil", key, err)
	}
}

func mustRead(t *testing.T, storage asto.Storage, key asto.Key) string {
	t.Helper()
	content, err := storage.Value(context.Background(), key)
	if err != nil {
		t.Fatalf("Value(%s): got error %v, want nil", key, err)
	}
	data, err := asto.ReadAll(content)
	if err != nil {
		t.Fatalf("ReadAll(%s): got error %v, want nil", key, err)
	}
	return string(data)
}

func testSaveAndValue(t *testing.T, storage asto.Storage) {
	ctx := context.Background()
	key := asto.NewKey("save", "a", "b.txt")
	mustSave(t, storage, key, "payload")

	exists, err := storage.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists(%s): got (%v, %v), want (true, nil)", key, exists, err)
	}
	if got := mustRead(t, storage, key); got != "payload" {
		t.Errorf("Value(%s): got %q, want %q", key, got, "payload")
	}

	content, err := storage.Value(ctx, key)
	if err != nil {
		t.Fatalf("Value(%s): got error %v", key, err)
	}
	if size, known := content.Size(); known && size != int64(len("payload")) {
		t.Errorf("Size(%s): got %d, want %d", key, size, len("payload"))
	}
}

func testOverwrite(t *testing.T, storage asto.Storage) {
	key := asto.NewKey("overwrite", "file")
	mustSave(t, storage, key, "first")
	mustSave(t, storage, key, "second")
	if got := mustRead(t, storage, key); got != "second" {
		t.Errorf("Value(%s): got %q, want %q", key, got, "second")
	}
}

func testMissingValue(t *testing.T, storage asto.Storage) {
	ctx := context.Background()
	key := asto.NewKey("missing", "file")

	exists, err := storage.Exists(ctx, key)
	if err != nil || exists {
		t.Errorf("Exists(%s): got (%v, %v), want (false, nil)", key, exists, err)
	}
	if _, err := storage.Value(ctx, key); !errors.Is(err, asto.ErrNotFound) {
		t.Errorf("Value(%s): got error %v, want ErrNotFound", key, err)
	}
	if _, err := storage.Metadata(ctx, key); !errors.Is(err, asto.ErrNotFound) {
		t.Errorf("Metadata(%s): got error %v, want ErrNotFound", key, err)
	}
}

func testRootKey(t *testing.T, storage asto.Storage) {
	err := storage.Save(context.Background(), asto.RootKey, asto.FromBytes([]byte("x")))
	if !errors.Is(err, asto.ErrRootKey) {
		t.Errorf("Save(root): got error %v, want ErrRootKey", err)
	}
}

func testDelete(t *testing.T, storage asto.Storage) {
	ctx := context.Background()
	key := asto.NewKey("delete", "me")
	mustSave(t, storage, key, "bye")

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete(%s): got error %v, want nil", key, err)
	}
	if exists, _ := storage.Exists(ctx, key); exists {
		t.Errorf("Exists(%s) after delete: got true, want false", key)
	}
	if err := storage.Delete(ctx, key); err != nil {
		t.Errorf("Delete(%s) twice: got error %v, want nil", key, err)
	}
}

func testMetadata(t *testing.T, storage asto.Storage) {
	key := asto.NewKey("meta", "file")
	mustSave(t, storage, key, "12345")

	meta, err := storage.Metadata(context.Background(), key)
	if err != nil {
		t.Fatalf("Metadata(%s): got error %v, want nil", key, err)
	}
	if meta.Size != 5 {
		t.Errorf("Metadata(%s).Size: got %d, want 5", key, meta.Size)
	}
	if meta.Updated.IsZero() {
		t.Errorf("Metadata(%s).Updated: got zero time", key)
	}
}

func testList(t *testing.T, storage asto.Storage) {
	mustSave(t, storage, asto.NewKey("list", "b"), "b")
	mustSave(t, storage, asto.NewKey("list", "a", "1"), "a1")
	mustSave(t, storage, asto.NewKey("list", "a", "2"), "a2")
	mustSave(t, storage, asto.NewKey("listing"), "other")

	keys, err := storage.List(context.Background(), asto.NewKey("list"))
	if err != nil {
		t.Fatalf("List(list): got error %v, want nil", err)
	}
	want := []string{"list/a/1", "list/a/2", "list/b"}
	if len(keys) != len(want) {
		t.Fatalf("List(list): got %v, want %v", keys, want)
	}
	for i, key := range keys {
		if key.String() != want[i] {
			t.Errorf("List(list)[%d]: got %q, want %q", i, key, want[i])
		}
	}
}

func testFailedContent(t *testing.T, storage asto.Storage) {
	ctx := context.Background()
	key := asto.NewKey("failed", "content")
	errBroken := errors.New("broken producer")
	r := io.MultiReader(bytes.NewReader([]byte("partial")), iotest.ErrReader(errBroken))

	err := storage.Save(ctx, key, asto.FromReader(io.NopCloser(r), -1))
	if err == nil {
		t.Errorf("Save(%s): got nil error, want failure", key)
	}
	if exists, _ := storage.Exists(ctx, key); exists {
		t.Errorf("Exists(%s) after failed save: got true, want false", key)
	}
}

func testUnknownSize(t *testing.T, storage asto.Storage) {
	key := asto.NewKey("unknown", "size")
	data := bytes.Repeat([]byte("z"), 64*1024)

	err := storage.Save(context.Background(), key, asto.FromReader(io.NopCloser(bytes.NewReader(data)), -1))
	if err != nil {
		t.Fatalf("Save(%s): got error %v, want nil", key, err)
	}
	if got := mustRead(t, storage, key); got != string(data) {
		t.Errorf("Value(%s): got %d bytes, want %d", key, len(got), len(data))
	}
}
