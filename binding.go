package waiter

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
)

type Lifetime byte

const (
	// One shared instance per container.
	Lifetime_Singleton Lifetime = iota
	// Never cached, every request builds a new instance.
	Lifetime_Prototype
)

func (l Lifetime) String() string {
	switch l {
	case Lifetime_Singleton:
		return "Singleton"
	case Lifetime_Prototype:
		return "Prototype"
	}
	return fmt.Sprintf("Lifetime(%d)", l)
}

// CreateFunc builds a value with every non-deferred dependency resolved.
type CreateFunc func(Container) any

// FinishFunc runs after the value is cached and fills its deferred slots.
type FinishFunc func(Container, any)

type DependencyKind byte

const (
	Dependency_Shared DependencyKind = iota
	Dependency_Fresh
	Dependency_Deferred
)

// Dependency is a statically known edge of a binding, used by build validation.
type Dependency struct {
	Type reflect.Type
	Kind DependencyKind
}

// Binding tells the container how to produce values of ServiceType.
type Binding struct {
	ServiceType reflect.Type
	// Set for interface bindings: requests are served by the binding of ImplType.
	ImplType reflect.Type
	Lifetime Lifetime
	// Profiles the binding is active in. Empty means every profile.
	Profiles     []string
	Create       CreateFunc
	Finish       FinishFunc
	Dependencies []Dependency
	// Values supplied from outside are never disposed by the container.
	External bool
	Name     string
}

func (b *Binding) String() string {
	s := fmt.Sprintf("ServiceType: %v Lifetime: %v", b.ServiceType, b.Lifetime)
	if b.ImplType != nil {
		s += fmt.Sprintf(" Impl: %v", b.ImplType)
	}
	if b.Name != "" {
		s += " Name: " + b.Name
	}
	if len(b.Profiles) > 0 {
		s += fmt.Sprintf(" Profiles: %v", b.Profiles)
	}
	return s
}

// ActiveIn reports whether the binding takes part in the given profile.
func (b *Binding) ActiveIn(profile string) bool {
	return len(b.Profiles) == 0 || slices.Contains(b.Profiles, profile)
}

func (b *Binding) scoped() bool {
	return len(b.Profiles) > 0
}

type ConstructorInfo struct {
	FuncType  reflect.Type
	FuncValue reflect.Value
	// input parameter types
	In []reflect.Type
	// output parameter types
	Out []reflect.Type
}

func (c *ConstructorInfo) Call(params []reflect.Value) []reflect.Value {
	return c.FuncValue.Call(params)
}

func newConstructorInfo(ctor any) *ConstructorInfo {
	ft := reflect.TypeOf(ctor)
	if ft == nil || ft.Kind() != reflect.Func {
		return &ConstructorInfo{FuncType: ft}
	}
	return &ConstructorInfo{
		FuncValue: reflect.ValueOf(ctor),
		FuncType:  ft,
		In:        reflectx.GetInParameters(ft),
		Out:       reflectx.GetOutParameters(ft),
	}
}

func checkConstructor(ctor *ConstructorInfo, serviceType reflect.Type) error {
	if ctor.FuncType == nil || ctor.FuncType.Kind() != reflect.Func {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor of '%v' is not a function", serviceType)}
	}

	out := ctor.Out
	numOut := len(out)
	if (numOut == 0 || numOut > 2) ||
		!out[0].AssignableTo(serviceType) ||
		(numOut == 2 && !reflectx.IsErrorType(out[1])) {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor must return a '%v' and an optional error", serviceType)}
	}

	if ctor.FuncType.IsVariadic() {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor of '%v' can not be variadic", serviceType)}
	}

	return nil
}

func NewInstanceBinding(serviceType reflect.Type, instance any) *Binding {
	if err := assignable(instance, serviceType); err != nil {
		panic(err)
	}

	return &Binding{
		ServiceType: serviceType,
		Lifetime:    Lifetime_Singleton,
		Create:      func(Container) any { return instance },
		External:    true,
		Name:        "instance",
	}
}

func NewFactoryBinding(serviceType reflect.Type, create CreateFunc) *Binding {
	if create == nil {
		panic(errorx.NewArgumentError(fmt.Sprintf("nil create function for '%v'", serviceType)))
	}

	return &Binding{
		ServiceType: serviceType,
		Lifetime:    Lifetime_Singleton,
		Create:      create,
		Name:        "factory",
	}
}

// NewConstructorBinding wraps a function whose parameters are resolved as
// shared dependencies. A non-nil error result aborts the construction.
func NewConstructorBinding(serviceType reflect.Type, ctor any) *Binding {
	ci := newConstructorInfo(ctor)
	if err := checkConstructor(ci, serviceType); err != nil {
		panic(err)
	}

	deps := make([]Dependency, 0, len(ci.In))
	for _, t := range ci.In {
		if !builtinType(t) {
			deps = append(deps, Dependency{Type: t, Kind: Dependency_Shared})
		}
	}

	return &Binding{
		ServiceType:  serviceType,
		Lifetime:     Lifetime_Singleton,
		Create:       func(c Container) any { return callConstructor(c, ci) },
		Dependencies: deps,
		Name:         reflectx.GetFuncName(ctor),
	}
}

func callConstructor(c Container, ci *ConstructorInfo) any {
	params := make([]reflect.Value, len(ci.In))
	for i, t := range ci.In {
		v, err := c.Get(t)
		if err != nil {
			panic(err)
		}
		params[i] = valueOf(v, t)
	}

	out := ci.Call(params)
	if len(out) == 2 && !out[1].IsNil() {
		panic(out[1].Interface().(error))
	}
	return out[0].Interface()
}

// NewInterfaceBinding serves requests for iface with the binding of impl,
// so both share one instance.
func NewInterfaceBinding(iface, impl reflect.Type) *Binding {
	if iface.Kind() != reflect.Interface {
		panic(&errorx.InvalidBinding{ServiceType: iface, Message: "not an interface type"})
	}
	if !impl.AssignableTo(iface) {
		panic(&errorx.InvalidBinding{
			ServiceType: iface,
			Message:     fmt.Sprintf("'%v' does not implement it", impl),
		})
	}

	return &Binding{
		ServiceType:  iface,
		ImplType:     impl,
		Lifetime:     Lifetime_Singleton,
		Dependencies: []Dependency{{Type: impl, Kind: Dependency_Shared}},
		Name:         "provides " + impl.String(),
	}
}

func assignable(v any, to reflect.Type) error {
	if v == nil {
		if reflectx.Nilable(to) {
			return nil
		}
		return &errorx.TypeIdentityError{To: to}
	}
	if t := reflect.TypeOf(v); !t.AssignableTo(to) {
		return &errorx.TypeIdentityError{To: to, From: t}
	}
	return nil
}

// valueOf converts v to a reflect.Value of type t, mapping nil to the zero value.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != t && rv.Type().AssignableTo(t) {
		c := reflect.New(t).Elem()
		c.Set(rv)
		return c
	}
	return rv
}
