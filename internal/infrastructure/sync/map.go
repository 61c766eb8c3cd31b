package sync

import (
	gosync "sync"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
)

// MemoryMap is an in-process last-writer-wins key-value map implementing the
// shared-map capability interface. Subscribers observe every write,
// including their own.
type MemoryMap struct {
	mu      gosync.RWMutex
	data    map[string]string
	subs    map[int]func(key, value string)
	nextSub int
}

func NewMemoryMap() *MemoryMap {
	return &MemoryMap{
		data: make(map[string]string),
		subs: make(map[int]func(key, value string)),
	}
}

func (m *MemoryMap) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok
}

func (m *MemoryMap) Set(key, value string) {
	m.mu.Lock()
	m.data[key] = value
	subs := make([]func(key, value string), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(key, value)
	}
}

// All returns a copy of every key currently set.
func (m *MemoryMap) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]string, len(m.data))
	for key, value := range m.data {
		all[key] = value
	}
	return all
}

func (m *MemoryMap) Subscribe(fn func(key, value string)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// MemoryLog is an in-process append-only result log. Unlike the state map
// it keeps history, so a late subscriber can replay everything via Entries.
type MemoryLog struct {
	mu      gosync.RWMutex
	entries []domain.ExecutionResult
	subs    map[int]func(domain.ExecutionResult)
	nextSub int
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		subs: make(map[int]func(domain.ExecutionResult)),
	}
}

func (l *MemoryLog) Append(result domain.ExecutionResult) {
	l.mu.Lock()
	l.entries = append(l.entries, result)
	subs := make([]func(domain.ExecutionResult), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(result)
	}
}

func (l *MemoryLog) Entries() []domain.ExecutionResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]domain.ExecutionResult, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *MemoryLog) Subscribe(fn func(domain.ExecutionResult)) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

var (
	_ ports.SharedMap = (*MemoryMap)(nil)
	_ ports.ResultLog = (*MemoryLog)(nil)
)
