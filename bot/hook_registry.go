package bot

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

type HookHandle string

type HookPriority int

const (
	HookPriorityLow    HookPriority = -10
	HookPriorityNormal HookPriority = 0
	HookPriorityHigh   HookPriority = 10
)

// 所有钩子表共用编号，句柄全局唯一
var hookSeq atomic.Uint64

// hookRegistry 按优先级排序的钩子表，高优先级在前，同优先级按注册顺序
type hookRegistry[T any] struct {
	mu    sync.RWMutex
	items []hookEntry[T]
}

type hookEntry[T any] struct {
	id       HookHandle
	name     string
	priority int
	once     bool
	handler  T
}

func (r *hookRegistry[T]) register(name string, priority HookPriority, once bool, handler T) (HookHandle, error) {
	if any(handler) == nil {
		return "", errors.New("hook handler must not be nil")
	}

	id := HookHandle(fmt.Sprintf("hook-%d", hookSeq.Add(1)))
	entry := hookEntry[T]{
		id:       id,
		name:     name,
		priority: int(priority),
		once:     once,
		handler:  handler,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	insertAt := len(r.items)
	for i, existing := range r.items {
		if entry.priority > existing.priority {
			insertAt = i
			break
		}
	}

	r.items = append(r.items, hookEntry[T]{})
	copy(r.items[insertAt+1:], r.items[insertAt:])
	r.items[insertAt] = entry
	return id, nil
}

func (r *hookRegistry[T]) unregister(handle HookHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, it := range r.items {
		if it.id == handle {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}

// take 返回当前全部钩子的快照，并移除其中的一次性钩子
func (r *hookRegistry[T]) take() []hookEntry[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == 0 {
		return nil
	}

	out := make([]hookEntry[T], len(r.items))
	copy(out, r.items)

	kept := r.items[:0]
	for _, it := range r.items {
		if !it.once {
			kept = append(kept, it)
		}
	}
	clear(r.items[len(kept):])
	r.items = kept
	return out
}

func (r *hookRegistry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
