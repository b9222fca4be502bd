package waiter

import (
	"fmt"
	"reflect"

	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
)

type fieldKind byte

const (
	field_Shared fieldKind = iota
	field_Fresh
	field_Boxed
	field_Deferred
	field_Prop
	field_Container
	field_Config
)

type fieldPlan struct {
	index int
	name  string
	kind  fieldKind
	// dependency type; the slot type for deferred fields
	dep   reflect.Type
	fresh bool
	prop  propTag
}

// structPlan builds a struct component from its field tags:
//
//	Repo  *Repo             `inject:""`          shared instance
//	Buf   *bytes.Buffer     `inject:"fresh"`     new instance
//	Job   *Job              `inject:"boxed"`     new Job value behind a pointer
//	Peer  *Deferred[*Peer]                       filled after caching
//	Port  int               `prop:"http.port,default=8080"`
//	Debug *bool             `prop:"debug"`       optional
//	DB    DBSettings        `prop:"db"`          decoded tree
//	All   Settings          `prop:",root"`       whole configuration
//	C     Container                              the container
//	Cfg   *config.Store                          the configuration
//
// Other fields, and fields tagged `inject:"-"`, are left zero.
type structPlan struct {
	typ        reflect.Type
	structType reflect.Type
	fields     []fieldPlan
}

func newStructPlan(t reflect.Type) (*structPlan, error) {
	st, ok := reflectx.StructOf(t)
	if !ok {
		return nil, &errorx.InvalidBinding{ServiceType: t, Message: "not a struct or a pointer to a struct"}
	}

	p := &structPlan{typ: t, structType: st}
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		fp, ok, err := planField(i, f)
		if err != nil {
			return nil, &errorx.InvalidBinding{ServiceType: t, Message: err.Error()}
		}
		if ok {
			p.fields = append(p.fields, fp)
		}
	}
	return p, nil
}

func planField(i int, f reflect.StructField) (fieldPlan, bool, error) {
	fp := fieldPlan{index: i, name: f.Name}
	inject, hasInject := f.Tag.Lookup("inject")
	if inject == "-" {
		return fp, false, nil
	}

	switch {
	case f.Type.Implements(deferredSlotType):
		fp.kind = field_Deferred
		fp.dep = reflect.New(f.Type.Elem()).Interface().(deferredSlot).slotType()
		fp.fresh = inject == "fresh"
	case f.Type == ContainerType:
		fp.kind = field_Container
	case f.Type == ConfigType:
		fp.kind = field_Config
	default:
		if tag, ok := f.Tag.Lookup("prop"); ok {
			pt, err := parsePropTag(tag, f)
			if err != nil {
				return fp, false, err
			}
			fp.kind, fp.prop = field_Prop, pt
			return fp, true, nil
		}
		if !hasInject {
			return fp, false, nil
		}
		switch inject {
		case "", "shared":
			fp.kind, fp.dep = field_Shared, f.Type
		case "fresh":
			fp.kind, fp.dep = field_Fresh, f.Type
		case "boxed":
			if f.Type.Kind() != reflect.Pointer {
				return fp, false, fmt.Errorf("field %s: boxed injection needs a pointer field", f.Name)
			}
			fp.kind, fp.dep = field_Boxed, f.Type.Elem()
		default:
			return fp, false, fmt.Errorf("field %s: unknown inject mode %q", f.Name, inject)
		}
	}
	return fp, true, nil
}

func (p *structPlan) dependencies() []Dependency {
	deps := make([]Dependency, 0, len(p.fields))
	for _, f := range p.fields {
		switch f.kind {
		case field_Shared:
			deps = append(deps, Dependency{Type: f.dep, Kind: Dependency_Shared})
		case field_Fresh, field_Boxed:
			deps = append(deps, Dependency{Type: f.dep, Kind: Dependency_Fresh})
		case field_Deferred:
			deps = append(deps, Dependency{Type: f.dep, Kind: Dependency_Deferred})
		}
	}
	return deps
}

func (p *structPlan) create(c Container) any {
	sv := reflect.New(p.structType).Elem()
	for _, f := range p.fields {
		fv := reflectx.Settable(sv.Field(f.index))
		switch f.kind {
		case field_Shared:
			fv.Set(valueOf(must(c.Get(f.dep)), f.dep))
		case field_Fresh:
			fv.Set(valueOf(must(c.Create(f.dep)), f.dep))
		case field_Boxed:
			box := reflect.New(f.dep)
			box.Elem().Set(valueOf(must(c.Create(f.dep)), f.dep))
			fv.Set(box)
		case field_Deferred:
			fv.Set(reflect.New(fv.Type().Elem()))
		case field_Prop:
			v, err := f.prop.resolve(c.Config(), fv.Type())
			if err != nil {
				panic(err)
			}
			fv.Set(v)
		case field_Container:
			fv.Set(reflect.ValueOf(rootOf(c)))
		case field_Config:
			fv.Set(reflect.ValueOf(c.Config()))
		}
	}

	if p.typ.Kind() == reflect.Pointer {
		return sv.Addr().Interface()
	}
	return sv.Interface()
}

// finish resolves every deferred slot of the cached value v.
func (p *structPlan) finish(c Container, v any) {
	sv := reflect.ValueOf(v)
	if p.typ.Kind() == reflect.Pointer {
		sv = sv.Elem()
	} else {
		addressable := reflect.New(p.structType).Elem()
		addressable.Set(sv)
		sv = addressable
	}

	for _, f := range p.fields {
		if f.kind != field_Deferred {
			continue
		}
		slot, ok := reflectx.Settable(sv.Field(f.index)).Interface().(deferredSlot)
		if !ok || reflect.ValueOf(slot).IsNil() {
			panic(&errorx.UninitializedDeferredError{Type: f.dep})
		}

		if err := fillSlot(c, f.dep, f.fresh, slot); err != nil {
			panic(fmt.Errorf("field %s: %w", f.name, err))
		}
	}
}

func (p *structPlan) hasDeferred() bool {
	for _, f := range p.fields {
		if f.kind == field_Deferred {
			return true
		}
	}
	return false
}

func NewStructBinding(t reflect.Type) *Binding {
	p, err := newStructPlan(t)
	if err != nil {
		panic(err)
	}

	b := &Binding{
		ServiceType:  t,
		Lifetime:     Lifetime_Singleton,
		Create:       p.create,
		Dependencies: p.dependencies(),
		Name:         "struct " + t.String(),
	}
	if p.hasDeferred() {
		b.Finish = p.finish
	}
	return b
}

// Struct registers T, a struct or a pointer to a struct, built from its
// tagged fields.
func Struct[T any](cb ContainerBuilder, opts ...BindingOption) {
	cb.Add(apply(NewStructBinding(reflectx.TypeOf[T]()), opts))
}

func must(v any, err error) any {
	if err != nil {
		panic(err)
	}
	return v
}

func rootOf(c Container) Container {
	if f, ok := c.(*frame); ok {
		return f.c
	}
	return c
}
