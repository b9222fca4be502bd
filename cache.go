package waiter

import (
	"reflect"
	"sync/atomic"

	"github.com/dozm/waiter/syncx"
)

// entry is a cached value. box is a *T holding it, so GetRef can hand out
// a stable pointer. Entries are never replaced or removed.
type entry struct {
	serviceType reflect.Type
	box         reflect.Value
	shared      bool
	// set once the outermost construction that registered the entry returns
	complete atomic.Bool
}

func newEntry(serviceType reflect.Type, v any) (*entry, error) {
	if err := assignable(v, serviceType); err != nil {
		return nil, err
	}
	box := reflect.New(serviceType)
	box.Elem().Set(valueOf(v, serviceType))
	return &entry{serviceType: serviceType, box: box}, nil
}

func (e *entry) value() any {
	return e.box.Elem().Interface()
}

func (e *entry) ref() any {
	return e.box.Interface()
}

func (e *entry) get(r request) any {
	if r == request_Ref {
		return e.ref()
	}
	return e.value()
}

// cache maps type keys to entries. A plain map is used unless the container
// is shared between goroutines.
type cache struct {
	plain  map[reflect.Type]*entry
	shared *syncx.Map[reflect.Type, *entry]
}

func newCache(concurrent bool) *cache {
	if concurrent {
		return &cache{shared: syncx.NewMap[reflect.Type, *entry]()}
	}
	return &cache{plain: make(map[reflect.Type]*entry)}
}

func (c *cache) load(t reflect.Type) (*entry, bool) {
	if c.shared != nil {
		return c.shared.Load(t)
	}
	e, ok := c.plain[t]
	return e, ok
}

// store adds e unless its type is cached already, and returns the entry
// that is cached for it.
func (c *cache) store(e *entry) *entry {
	if c.shared != nil {
		actual, _ := c.shared.LoadOrStore(e.serviceType, e)
		return actual
	}
	if cur, ok := c.plain[e.serviceType]; ok {
		return cur
	}
	c.plain[e.serviceType] = e
	return e
}

func (c *cache) len() int {
	if c.shared != nil {
		return c.shared.Len()
	}
	return len(c.plain)
}
