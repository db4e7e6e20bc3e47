package match

import "sync"

// registry 并发安全的 map
type registry[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func newRegistry[K comparable, V any]() *registry[K, V] {
	return &registry[K, V]{m: make(map[K]V)}
}

func (r *registry[K, V]) Get(k K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[k]
	return v, ok
}

func (r *registry[K, V]) Set(k K, v V) {
	r.mu.Lock()
	r.m[k] = v
	r.mu.Unlock()
}

// SetIfAbsent 仅在 k 不存在时写入，返回是否写入
func (r *registry[K, V]) SetIfAbsent(k K, v V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[k]; ok {
		return false
	}
	r.m[k] = v
	return true
}

func (r *registry[K, V]) Delete(k K) {
	r.mu.Lock()
	delete(r.m, k)
	r.mu.Unlock()
}

func (r *registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// queue 并发安全的 FIFO 房间队列
type queue struct {
	mu    sync.Mutex
	rooms []*Room
}

func (q *queue) Push(r *Room) {
	q.mu.Lock()
	q.rooms = append(q.rooms, r)
	q.mu.Unlock()
}

func (q *queue) Pop() (*Room, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.rooms) == 0 {
		return nil, false
	}
	r := q.rooms[0]
	q.rooms[0] = nil
	q.rooms = q.rooms[1:]
	return r, true
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rooms)
}
