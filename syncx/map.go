package syncx

import (
	"sync"
)

// Map is a typed wrapper over sync.Map.
type Map[TK any, TV any] struct {
	data sync.Map
}

func (m *Map[TK, TV]) Load(key TK) (TV, bool) {
	v, ok := m.data.Load(key)
	var v2 TV
	if ok {
		v2, ok = v.(TV)
	}
	return v2, ok
}

func (m *Map[TK, TV]) LoadOrStore(key TK, value TV) (TV, bool) {
	v, ok := m.data.LoadOrStore(key, value)
	return v.(TV), ok
}

func (m *Map[TK, TV]) Len() int {
	l := 0
	m.data.Range(func(_, _ any) bool {
		l++
		return true
	})
	return l
}

func NewMap[TK any, TV any]() *Map[TK, TV] {
	return &Map[TK, TV]{}
}
