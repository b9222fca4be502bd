package waiter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dozm/waiter/config"
	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/util"
	"go.uber.org/zap"
)

type request byte

const (
	request_Shared request = iota
	request_Fresh
	request_Ref
)

// maxDepth bounds nested constructions, deferred ones included.
const maxDepth = 512

// frame is one outermost resolution together with everything it builds
// recursively. Creation and finish routines receive the frame as their
// Container.
//
// path is the chain of create phases currently running; a type appearing
// twice on it is an eager cycle. Finish phases start a new chain.
//
// In concurrent mode the frame takes the container build lock the first
// time it has to construct a shared value and keeps it until it closes, so
// entries it registers are only visible to other goroutines once complete.
type frame struct {
	c     *container
	path  []reflect.Type
	depth int
	// shared values whose create phase is running
	building map[reflect.Type]int
	// slot fills waiting for a building value to be registered
	pending    map[reflect.Type][]func(any)
	registered []*entry
	locked     bool
	closed     bool
}

func newFrame(c *container) *frame {
	return &frame{
		c:        c,
		building: make(map[reflect.Type]int),
		pending:  make(map[reflect.Type][]func(any)),
	}
}

func (f *frame) Profile() string {
	return f.c.profile
}

func (f *frame) Config() *config.Store {
	return f.c.store
}

func (f *frame) Get(serviceType reflect.Type) (any, error) {
	return f.request(serviceType, request_Shared)
}

func (f *frame) Create(serviceType reflect.Type) (any, error) {
	return f.request(serviceType, request_Fresh)
}

func (f *frame) Ref(serviceType reflect.Type) (any, error) {
	return f.request(serviceType, request_Ref)
}

func (f *frame) request(t reflect.Type, r request) (any, error) {
	// a routine kept the frame past its resolution
	if f.closed {
		return f.c.request(t, r)
	}
	if err := f.c.usable(); err != nil {
		return nil, err
	}
	return f.resolve(t, r)
}

func (f *frame) resolve(t reflect.Type, r request) (any, error) {
	e, err := f.entry(t, r == request_Fresh)
	if err != nil {
		return nil, err
	}
	return e.get(r), nil
}

func (f *frame) entry(t reflect.Type, fresh bool) (*entry, error) {
	b, ok := f.c.bindings[t]
	if !ok {
		return nil, &errorx.ServiceNotFound{ServiceType: t, Profile: f.c.profile}
	}

	fresh = fresh || b.Lifetime == Lifetime_Prototype
	if !fresh {
		if e, ok := f.cached(t); ok {
			return e, nil
		}
		if f.building[t] > 0 {
			if err := f.checkCircular(t); err != nil {
				return nil, err
			}
			return nil, &errorx.CircularDependencyError{
				Message: fmt.Sprintf("'%v' was requested while it is being created, inject it through a Deferred slot", t),
				Path:    []reflect.Type{t},
			}
		}
	}

	if b.ImplType != nil {
		return f.alias(t, b, fresh)
	}

	return f.construct(t, b, !fresh)
}

// target follows interface bindings down to the type that is constructed.
func (f *frame) target(t reflect.Type) reflect.Type {
	for i := 0; i < maxDepth; i++ {
		b, ok := f.c.bindings[t]
		if !ok || b.ImplType == nil {
			return t
		}
		t = b.ImplType
	}
	return t
}

// whenRegistered runs fn with the shared value of t once it is cached.
// It reports false if t is not being created by this frame.
func (f *frame) whenRegistered(t reflect.Type, fn func(any)) bool {
	if f.closed {
		return false
	}
	t = f.target(t)
	if f.building[t] == 0 {
		return false
	}
	f.pending[t] = append(f.pending[t], fn)
	return true
}

func (f *frame) cached(t reflect.Type) (*entry, bool) {
	enabled := f.c.gate.Enabled()
	if e, ok := f.c.cache.load(t); ok && (e.complete.Load() || f.locked || !enabled) {
		return e, true
	}
	if !enabled || f.locked {
		return nil, false
	}

	f.lock()
	return f.c.cache.load(t)
}

// alias serves an interface binding from its implementation, caching the
// result under the interface key when the implementation is shared.
func (f *frame) alias(t reflect.Type, b *Binding, fresh bool) (*entry, error) {
	target, err := f.entry(b.ImplType, fresh)
	if err != nil {
		return nil, err
	}

	e, err := newEntry(t, target.value())
	if err != nil {
		return nil, err
	}
	if target.shared {
		e.shared = true
		f.register(e, false)
	}
	return e, nil
}

// construct runs the two construction phases: create with eager
// dependencies, cache the value, then finish it. Requests made while
// finishing see the cached value, which breaks cycles through deferred
// slots.
func (f *frame) construct(t reflect.Type, b *Binding, share bool) (*entry, error) {
	if err := f.checkCircular(t); err != nil {
		return nil, err
	}

	f.path = append(f.path, t)
	f.depth++
	if share {
		f.building[t]++
	}
	v, err := f.call(t, func() any { return b.Create(f) })
	if share {
		f.building[t]--
	}
	f.depth--
	f.path = f.path[:len(f.path)-1]

	if err == nil {
		err = assignable(v, t)
	}
	if err != nil {
		if share && len(f.pending[t]) > 0 {
			// owners of the waiting slots are cached with empty slots
			f.c.fail(err)
		}
		return nil, err
	}

	e, err := newEntry(t, v)
	if err != nil {
		return nil, err
	}
	e.shared = share
	if share {
		f.register(e, !b.External)
		if err := f.runPending(t, e); err != nil {
			f.c.fail(err)
			return nil, err
		}
	}

	if b.Finish != nil {
		chain := f.path
		f.path = nil
		f.depth++
		_, err := f.call(t, func() any { b.Finish(f, e.value()); return nil })
		f.depth--
		f.path = chain
		if err != nil {
			if share {
				f.c.fail(err)
			}
			return nil, err
		}
	}

	f.c.log.Debug("component created",
		zap.Stringer("type", t),
		zap.Stringer("lifetime", b.Lifetime),
		zap.Bool("shared", share))
	return e, nil
}

func (f *frame) runPending(t reflect.Type, e *entry) error {
	fns := f.pending[t]
	delete(f.pending, t)
	for _, fn := range fns {
		if _, err := f.call(t, func() any { fn(e.value()); return nil }); err != nil {
			return err
		}
	}
	return nil
}

func (f *frame) register(e *entry, dispose bool) {
	if f.c.cache.store(e) != e {
		return
	}
	f.registered = append(f.registered, e)
	if dispose {
		f.c.created = append(f.c.created, e)
	}
}

func (f *frame) call(t reflect.Type, fn func() any) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v: %w", t, asError(p))
		}
	}()
	return fn(), nil
}

func (f *frame) checkCircular(t reflect.Type) error {
	if f.depth >= maxDepth {
		return &errorx.CircularDependencyError{
			Message: fmt.Sprintf("resolution of '%v' is nested more than %d levels deep", t, maxDepth),
			Path:    append(util.ClipSlice(f.path), t),
		}
	}
	for i, p := range f.path {
		if p == t {
			return newCircularDependencyError(append(util.ClipSlice(f.path[i:]), t))
		}
	}
	return nil
}

func (f *frame) lock() {
	if !f.locked {
		f.c.gate.Lock()
		f.locked = true
	}
}

func (f *frame) close() {
	for _, e := range f.registered {
		e.complete.Store(true)
	}
	f.registered = nil
	f.closed = true
	if f.c.active == f {
		f.c.active = nil
	}
	if f.locked {
		f.locked = false
		f.c.gate.Unlock()
	}
}

func newCircularDependencyError(path []reflect.Type) *errorx.CircularDependencyError {
	names := make([]string, len(path))
	for i, t := range path {
		names[i] = t.String()
	}

	var sb strings.Builder
	sb.WriteString("a circular dependency was detected for the service of type '")
	sb.WriteString(path[0].String())
	sb.WriteString("': ")
	sb.WriteString(strings.Join(names, " -> "))

	return &errorx.CircularDependencyError{Message: sb.String(), Path: path}
}

func asError(p any) error {
	if e, ok := p.(error); ok {
		return e
	}
	return fmt.Errorf("%v", p)
}
