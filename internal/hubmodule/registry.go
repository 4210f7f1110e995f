package hubmodule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrModuleExists 表示同一个 key 已经注册过模块。
	ErrModuleExists = errors.New("module already registered")
	// ErrInvalidModule 表示模块元数据不完整或校验模式无法识别。
	ErrInvalidModule = errors.New("invalid module")
)

// Registry 保存按 key 索引的模块，key 不区分大小写。包级函数操作默认实例。
type Registry struct {
	mu      sync.RWMutex
	modules map[string]ModuleMetadata
	keys    []string
}

// NewRegistry 返回空注册表，测试中可用来隔离全局状态。
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]ModuleMetadata)}
}

var defaultRegistry = NewRegistry()

// Register 将模块加入默认注册表。
func Register(meta ModuleMetadata) error {
	return defaultRegistry.Register(meta)
}

// MustRegister 在注册失败时 panic，供模块 init() 使用。
func MustRegister(meta ModuleMetadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 在默认注册表中查找模块。
func Resolve(key string) (ModuleMetadata, bool) {
	return defaultRegistry.Resolve(key)
}

// List 返回默认注册表中按 key 排序的模块。
func List() []ModuleMetadata {
	return defaultRegistry.List()
}

// Keys 返回默认注册表中排序后的模块 key。
func Keys() []string {
	return defaultRegistry.Keys()
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *Registry) Register(meta ModuleMetadata) error {
	key := normalizeKey(meta.Key)
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidModule)
	}
	if _, ok := ParseValidationMode(string(meta.CacheStrategy.ValidationMode)); !ok {
		return fmt.Errorf("%w: %s has unknown validation %q", ErrInvalidModule, key, meta.CacheStrategy.ValidationMode)
	}
	meta.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[key]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, key)
	}
	r.modules[key] = meta
	idx := sort.SearchStrings(r.keys, key)
	r.keys = append(r.keys, "")
	copy(r.keys[idx+1:], r.keys[idx:])
	r.keys[idx] = key
	return nil
}

func (r *Registry) Resolve(key string) (ModuleMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.modules[normalizeKey(key)]
	return meta, ok
}

func (r *Registry) List() []ModuleMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.keys) == 0 {
		return nil
	}
	out := make([]ModuleMetadata, len(r.keys))
	for i, key := range r.keys {
		out[i] = r.modules[key]
	}
	return out
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}
