package waiter

import (
	"reflect"

	"github.com/dozm/waiter/errorx"
)

type visitState byte

const (
	visitState_None visitState = iota
	visitState_Visiting
	visitState_Done
)

// bindingValidator checks the bindings selected for a profile: every
// declared dependency must have a binding, and eager dependencies must not
// form a cycle. Deferred dependencies may.
type bindingValidator struct {
	bindings map[reflect.Type]*Binding
	profile  string
	state    map[reflect.Type]visitState
	path     []reflect.Type
	reported map[reflect.Type]bool
}

func newBindingValidator(bindings map[reflect.Type]*Binding, profile string) *bindingValidator {
	return &bindingValidator{
		bindings: bindings,
		profile:  profile,
		state:    make(map[reflect.Type]visitState),
		reported: make(map[reflect.Type]bool),
	}
}

func (v *bindingValidator) Validate() []error {
	var errs []error
	for _, b := range v.bindings {
		for _, d := range b.Dependencies {
			if _, ok := v.bindings[d.Type]; !ok {
				errs = append(errs, &errorx.MissingBindingError{
					ServiceType: b.ServiceType,
					Dependency:  d.Type,
					Profile:     v.profile,
				})
			}
		}
	}

	for t := range v.bindings {
		if err := v.visit(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (v *bindingValidator) visit(t reflect.Type) error {
	switch v.state[t] {
	case visitState_Done:
		return nil
	case visitState_Visiting:
		return v.cycle(t)
	}

	b, ok := v.bindings[t]
	if !ok {
		return nil
	}

	v.state[t] = visitState_Visiting
	v.path = append(v.path, t)
	defer func() {
		v.path = v.path[:len(v.path)-1]
		v.state[t] = visitState_Done
	}()

	for _, d := range b.Dependencies {
		if d.Kind == Dependency_Deferred {
			continue
		}
		if err := v.visit(d.Type); err != nil {
			return err
		}
	}
	return nil
}

// cycle reports a cycle once, keyed by the type that closes it.
func (v *bindingValidator) cycle(t reflect.Type) error {
	if v.reported[t] {
		return nil
	}
	v.reported[t] = true

	start := 0
	for i, p := range v.path {
		if p == t {
			start = i
			break
		}
	}
	path := append(append([]reflect.Type{}, v.path[start:]...), t)
	return newCircularDependencyError(path)
}
