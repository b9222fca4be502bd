package waiter

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
)

// Deferred is a one-shot slot for a dependency that can only be provided
// after its owner is cached, which is how dependency cycles are broken.
// It is empty until Init is called and must not be copied.
type Deferred[T any] struct {
	v atomic.Pointer[T]
}

func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{}
}

// Init fills the slot. It panics if the slot is already filled.
func (d *Deferred[T]) Init(v T) {
	if err := d.TryInit(v); err != nil {
		panic(err)
	}
}

func (d *Deferred[T]) TryInit(v T) error {
	p := new(T)
	*p = v
	if !d.v.CompareAndSwap(nil, p) {
		return &errorx.DeferredAlreadyInitializedError{Type: reflectx.TypeOf[T]()}
	}
	return nil
}

// Get returns the value. It panics if the slot is still empty.
func (d *Deferred[T]) Get() T {
	v, ok := d.TryGet()
	if !ok {
		panic(&errorx.UninitializedDeferredError{Type: reflectx.TypeOf[T]()})
	}
	return v
}

func (d *Deferred[T]) TryGet() (T, bool) {
	p := d.v.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

func (d *Deferred[T]) IsInitialized() bool {
	return d.v.Load() != nil
}

func (d *Deferred[T]) String() string {
	state := "empty"
	if d.IsInitialized() {
		state = "initialized"
	}
	return fmt.Sprintf("Deferred[%v](%s)", reflectx.TypeOf[T](), state)
}

// InitDeferred fills d with the shared instance of T.
func InitDeferred[T any](c Container, d *Deferred[T]) {
	if err := fillSlot(c, reflectx.TypeOf[T](), false, d); err != nil {
		panic(err)
	}
}

// deferredSlot lets struct components fill slots without knowing T.
type deferredSlot interface {
	slotType() reflect.Type
	initAny(v any) error
}

func (d *Deferred[T]) slotType() reflect.Type {
	return reflectx.TypeOf[T]()
}

func (d *Deferred[T]) initAny(v any) error {
	t, err := cast[T](reflectx.TypeOf[T](), v)
	if err != nil {
		return err
	}
	return d.TryInit(t)
}

var deferredSlotType = reflectx.TypeOf[deferredSlot]()

// fillSlot resolves the slot's target and initializes the slot. A shared
// target still being created by the current resolution fills the slot as
// soon as it is cached.
func fillSlot(c Container, t reflect.Type, fresh bool, slot deferredSlot) error {
	if f, ok := c.(*frame); ok && !fresh {
		if f.whenRegistered(t, func(v any) {
			if err := slot.initAny(v); err != nil {
				panic(err)
			}
		}) {
			return nil
		}
	}

	var v any
	var err error
	if fresh {
		v, err = c.Create(t)
	} else {
		v, err = c.Get(t)
	}
	if err != nil {
		return err
	}
	return slot.initAny(v)
}
