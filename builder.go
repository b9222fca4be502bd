package waiter

import (
	"fmt"
	"reflect"

	"github.com/dozm/waiter/config"
	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
	"github.com/dozm/waiter/syncx"
	"github.com/dozm/waiter/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContainerBuilder interface {
	Add(...*Binding)
	Contains(reflect.Type) bool
	Remove(reflect.Type)
	ConfigureOptions(func(*Options))
	Build() (Root, error)
	MustBuild() Root
}

type containerBuilder struct {
	bindings             []*Binding
	optionsConfigurators []func(*Options)
}

// Create a ContainerBuilder
func Builder() ContainerBuilder {
	return &containerBuilder{}
}

func (b *containerBuilder) ConfigureOptions(f func(*Options)) {
	b.optionsConfigurators = append(b.optionsConfigurators, f)
}

func (b *containerBuilder) Add(bindings ...*Binding) {
	for _, d := range bindings {
		if d == nil || d.ServiceType == nil {
			panic(errorx.NewArgumentError("binding without a service type"))
		}
		if d.Create == nil && d.ImplType == nil {
			panic(&errorx.InvalidBinding{ServiceType: d.ServiceType, Message: "no create function"})
		}
	}
	b.bindings = append(b.bindings, bindings...)
}

func (b *containerBuilder) Contains(serviceType reflect.Type) bool {
	for _, d := range b.bindings {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

func (b *containerBuilder) Remove(serviceType reflect.Type) {
	kept := b.bindings[:0]
	for _, d := range b.bindings {
		if d.ServiceType != serviceType {
			kept = append(kept, d)
		}
	}
	b.bindings = kept
}

func (b *containerBuilder) configureOptions(options *Options) {
	for _, f := range b.optionsConfigurators {
		f(options)
	}
}

// Build resolves the profile, loads the configuration and selects the
// bindings active in the profile. No component is created.
func (b *containerBuilder) Build() (Root, error) {
	options := DefaultOptions()
	b.configureOptions(&options)

	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if options.Config.Logger == nil {
		options.Config.Logger = log
	}

	profile := options.Profile
	if profile == "" {
		p, err := config.ResolveProfile(options.Config)
		if err != nil {
			return nil, err
		}
		profile = p
	}

	store := options.Store
	if store == nil {
		s, err := config.Load(profile, options.Config)
		if err != nil {
			return nil, err
		}
		store = s
	}

	id := uuid.NewString()
	c := &container{
		id:      id,
		profile: profile,
		store:   store,
		cache:   newCache(options.Concurrent),
		gate:    syncx.NewGate(options.Concurrent),
		log:     log.With(zap.String("container", id), zap.String("profile", profile)),
	}

	bindings, errs := selectBindings(b.bindings, profile)
	for _, d := range b.builtInBindings(c) {
		bindings[d.ServiceType] = d
	}
	c.bindings = bindings

	if options.ValidateOnBuild {
		errs = append(errs, newBindingValidator(bindings, profile).Validate()...)
	}
	if len(errs) > 0 {
		return nil, &errorx.AggregateError{Errors: errs}
	}

	c.log.Info("container built",
		zap.Int("bindings", len(bindings)),
		zap.Bool("concurrent", options.Concurrent))
	return c, nil
}

func (b *containerBuilder) MustBuild() Root {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

func (b *containerBuilder) builtInBindings(c *container) []*Binding {
	return []*Binding{
		NewInstanceBinding(ContainerType, Container(c)),
		NewInstanceBinding(ConfigType, c.store),
		NewInstanceBinding(IsServiceType, IsService(c)),
	}
}

// selectBindings keeps the bindings active in profile. A binding scoped to
// the profile overrides an unscoped one; two bindings of the same kind for
// one type are ambiguous.
func selectBindings(all []*Binding, profile string) (map[reflect.Type]*Binding, []error) {
	selected := make(map[reflect.Type]*Binding)
	conflicts := make(map[reflect.Type][]*Binding)

	for _, d := range all {
		if !d.ActiveIn(profile) {
			continue
		}
		cur, ok := selected[d.ServiceType]
		switch {
		case !ok:
			selected[d.ServiceType] = d
		case d.scoped() && !cur.scoped():
			selected[d.ServiceType] = d
			delete(conflicts, d.ServiceType)
		case d.scoped() == cur.scoped():
			if _, seen := conflicts[d.ServiceType]; !seen {
				conflicts[d.ServiceType] = []*Binding{cur}
			}
			conflicts[d.ServiceType] = append(conflicts[d.ServiceType], d)
		}
	}

	var errs []error
	for t, ds := range conflicts {
		names := make([]string, len(ds))
		for i, d := range ds {
			names[i] = d.String()
		}
		errs = append(errs, &errorx.AmbiguousBindingError{ServiceType: t, Profile: profile, Bindings: names})
	}
	return selected, errs
}

type BindingOption func(*Binding)

// InProfiles restricts a binding to the given profiles.
func InProfiles(profiles ...string) BindingOption {
	return func(b *Binding) {
		b.Profiles = util.Dedupe(append(b.Profiles, profiles...))
	}
}

// AsPrototype makes every request build a new instance.
func AsPrototype() BindingOption {
	return func(b *Binding) {
		b.Lifetime = Lifetime_Prototype
	}
}

func Named(name string) BindingOption {
	return func(b *Binding) {
		b.Name = name
	}
}

// WithFinish adds a second phase routine, run once the value is cached.
// It is the place to fill deferred slots.
func WithFinish[T any](fn func(Container, T)) BindingOption {
	return func(b *Binding) {
		if t := reflectx.TypeOf[T](); t != b.ServiceType {
			panic(&errorx.InvalidBinding{
				ServiceType: b.ServiceType,
				Message:     fmt.Sprintf("finish function takes '%v'", t),
			})
		}
		prev := b.Finish
		b.Finish = func(c Container, v any) {
			if prev != nil {
				prev(c, v)
			}
			t, _ := v.(T)
			fn(c, t)
		}
	}
}

// WithDependencies declares dependencies of a component, checked on build.
func WithDependencies(deps ...Dependency) BindingOption {
	return func(b *Binding) {
		b.Dependencies = append(b.Dependencies, deps...)
	}
}

func apply(b *Binding, opts []BindingOption) *Binding {
	for _, o := range opts {
		o(b)
	}
	return b
}

// Component registers T with a creation function.
func Component[T any](cb ContainerBuilder, create func(Container) T, opts ...BindingOption) {
	d := NewFactoryBinding(reflectx.TypeOf[T](), func(c Container) any { return create(c) })
	cb.Add(apply(d, opts))
}

// Constructor registers T with a function whose parameters are resolved
// from the container.
func Constructor[T any](cb ContainerBuilder, ctor any, opts ...BindingOption) {
	cb.Add(apply(NewConstructorBinding(reflectx.TypeOf[T](), ctor), opts))
}

// Instance registers an existing value of T.
func Instance[T any](cb ContainerBuilder, instance T, opts ...BindingOption) {
	cb.Add(apply(NewInstanceBinding(reflectx.TypeOf[T](), instance), opts))
}

// Provides binds the interface I to the implementation T, sharing T's instance.
func Provides[I any, T any](cb ContainerBuilder, opts ...BindingOption) {
	cb.Add(apply(NewInterfaceBinding(reflectx.TypeOf[I](), reflectx.TypeOf[T]()), opts))
}
