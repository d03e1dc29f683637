package validator

import (
	"fmt"
	"sort"
	"sync"
)

// Factory 根据参数构造验证器实例
type Factory func(args map[string]any) (Validator, error)

// Registry 验证器注册表
// 在构建 schema 树时按标识符查找验证器；并发读安全
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册验证器工厂，重复注册返回错误
func (r *Registry) Register(id string, f Factory) error {
	if id == "" {
		return fmt.Errorf("validator id is empty")
	}
	if f == nil {
		return fmt.Errorf("validator %q: nil factory", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("validator %q already registered", id)
	}
	r.factories[id] = f
	return nil
}

// MustRegister 注册失败时 panic，用于 init
func (r *Registry) MustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

// Unregister 注销验证器
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, id)
}

// Has 是否已注册
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// Resolve 按标识符构造验证器
func (r *Registry) Resolve(id string, args map[string]any) (Validator, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("validator %q not registered", id)
	}
	v, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("validator %q: %w", id, err)
	}
	return v, nil
}

// List 列出所有已注册的标识符（已排序）
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var defaultRegistry = NewRegistry()

func init() {
	registerBuiltins(defaultRegistry)
}

// Default 返回进程级默认注册表（启动时已注册内置验证器）
func Default() *Registry {
	return defaultRegistry
}

// NewRegistryWithBuiltins 创建包含内置验证器的独立注册表
func NewRegistryWithBuiltins() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}
