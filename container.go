package waiter

import (
	"reflect"
	"sync/atomic"

	"github.com/dozm/waiter/config"
	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
	"github.com/dozm/waiter/syncx"
	"github.com/dozm/waiter/util"
	"go.uber.org/zap"
)

var ContainerType = reflectx.TypeOf[Container]()
var ConfigType = reflectx.TypeOf[*config.Store]()
var IsServiceType = reflectx.TypeOf[IsService]()

func builtinType(t reflect.Type) bool {
	return t == ContainerType || t == ConfigType || t == IsServiceType
}

// Container options.
type Options struct {
	// Active profile. Empty means it is resolved from the command line,
	// the environment and the default config file.
	Profile string
	// Allows the container to be used from several goroutines.
	Concurrent bool
	// Checks the binding table for missing dependencies and eager cycles.
	ValidateOnBuild bool
	// Where configuration is loaded from.
	Config config.Options
	// Preloaded configuration, Config is ignored when set.
	Store  *config.Store
	Logger *zap.Logger
}

// Get default container options.
func DefaultOptions() Options {
	return Options{
		ValidateOnBuild: true,
		Config:          config.DefaultOptions(),
	}
}

// Container implementation
type container struct {
	id       string
	profile  string
	store    *config.Store
	bindings map[reflect.Type]*Binding
	cache    *cache
	gate     syncx.Gate
	log      *zap.Logger
	// frame of the running resolution, single goroutine mode only
	active   *frame
	// shared entries in creation order
	created  []*entry
	disposed atomic.Bool
	fault    atomic.Pointer[errorx.ContainerFaultedError]
}

func (c *container) ID() string {
	return c.id
}

func (c *container) Profile() string {
	return c.profile
}

func (c *container) Config() *config.Store {
	return c.store
}

func (c *container) Get(serviceType reflect.Type) (any, error) {
	return c.request(serviceType, request_Shared)
}

func (c *container) Create(serviceType reflect.Type) (any, error) {
	return c.request(serviceType, request_Fresh)
}

func (c *container) Ref(serviceType reflect.Type) (any, error) {
	return c.request(serviceType, request_Ref)
}

func (c *container) IsService(serviceType reflect.Type) bool {
	_, ok := c.bindings[serviceType]
	return ok
}

func (c *container) request(t reflect.Type, r request) (any, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}

	if r != request_Fresh {
		if e, ok := c.cache.load(t); ok && e.complete.Load() {
			return e.get(r), nil
		}
	}

	// without the build lock everything runs on one goroutine, so a request
	// made while a frame is open comes from one of its routines
	if !c.gate.Enabled() {
		if c.active != nil {
			return c.active.request(t, r)
		}
		f := newFrame(c)
		c.active = f
		defer f.close()
		return f.resolve(t, r)
	}

	f := newFrame(c)
	defer f.close()
	return f.resolve(t, r)
}

func (c *container) usable() error {
	if c.disposed.Load() {
		return &errorx.ObjectDisposedError{Message: "container " + c.id}
	}
	if f := c.fault.Load(); f != nil {
		return f
	}
	return nil
}

// fail marks the container unusable after a value was cached but could
// not be finished.
func (c *container) fail(err error) {
	if c.fault.CompareAndSwap(nil, &errorx.ContainerFaultedError{Cause: err}) {
		c.log.Error("construction failed, container faulted", zap.Error(err))
	}
}

func (c *container) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	c.gate.Lock()
	created := util.Reversed(c.created)
	c.gate.Unlock()

	n := 0
	for _, e := range created {
		if d, ok := e.value().(Disposable); ok {
			d.Dispose()
			n++
		}
	}
	c.log.Info("container disposed", zap.Int("cached", c.cache.len()), zap.Int("disposed", n))
}
