package waiter

import (
	"errors"
	"reflect"

	"github.com/dozm/waiter/config"
	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
)

// Container resolves components by type.
//
// Get returns the shared instance, Create a fresh one built by the same
// binding and Ref the cell holding the shared instance (a *T for type T).
type Container interface {
	Profile() string
	Config() *config.Store
	Get(serviceType reflect.Type) (any, error)
	Create(serviceType reflect.Type) (any, error)
	Ref(serviceType reflect.Type) (any, error)
}

// Root is the container returned by a builder.
type Root interface {
	Container
	IsService
	Disposable
	ID() string
}

// Optional service used to determine if the specified type is available from the Container.
type IsService interface {
	IsService(serviceType reflect.Type) bool
}

// Disposable singletons are disposed with their container, newest first.
type Disposable interface {
	Dispose()
}

// Get the shared instance of type T from the container c.
func Get[T any](c Container) T {
	result, err := TryGet[T](c)
	if err != nil {
		panic(err)
	}
	return result
}

func TryGet[T any](c Container) (T, error) {
	t := reflectx.TypeOf[T]()
	v, err := c.Get(t)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](t, v)
}

// Create a new instance of type T. Its shared dependencies stay shared.
func Create[T any](c Container) T {
	result, err := TryCreate[T](c)
	if err != nil {
		panic(err)
	}
	return result
}

func TryCreate[T any](c Container) (T, error) {
	t := reflectx.TypeOf[T]()
	v, err := c.Create(t)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](t, v)
}

// GetRef returns a pointer to the cached instance of type T.
// It stays valid for the lifetime of the container.
func GetRef[T any](c Container) *T {
	t := reflectx.TypeOf[T]()
	r, err := c.Ref(t)
	if err != nil {
		panic(err)
	}
	p, ok := r.(*T)
	if !ok {
		panic(&errorx.TypeIdentityError{To: reflect.PointerTo(t), From: reflect.TypeOf(r)})
	}
	return p
}

// CreateBoxed returns a new instance of type T in its own allocation.
func CreateBoxed[T any](c Container) *T {
	v := Create[T](c)
	return &v
}

func cast[T any](t reflect.Type, v any) (T, error) {
	if v == nil {
		var zero T
		if reflectx.Nilable(t) {
			return zero, nil
		}
		return zero, &errorx.TypeIdentityError{To: t}
	}
	result, ok := v.(T)
	if !ok {
		return result, &errorx.TypeIdentityError{To: t, From: reflect.TypeOf(v)}
	}
	return result, nil
}

// Invoke the function fn.
// the input paramenters of the fn function will be resolved from the Container c.
func Invoke(c Container, fn any) (fnReturn []any, err error) {
	vfn := reflect.ValueOf(fn)
	if vfn.Kind() != reflect.Func {
		err = errors.New("fn is not a function")
		return
	}

	inputTypes := reflectx.GetInParameters(vfn.Type())

	inputs := make([]reflect.Value, len(inputTypes))
	for i, t := range inputTypes {
		v, e := c.Get(t)
		if e != nil {
			err = e
			return
		}

		inputs[i] = valueOf(v, t)
	}

	ouputs := vfn.Call(inputs)
	numOutputs := len(ouputs)
	if numOutputs > 0 {
		fnReturn = make([]any, numOutputs)
		for i, v := range ouputs {
			fnReturn[i] = v.Interface()
		}
	}

	return
}
