package waiter

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/dozm/waiter/config"
	"github.com/dozm/waiter/errorx"
	"github.com/dozm/waiter/reflectx"
)

// Scalar types a single property can be read as.
type Scalar interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string | ~bool
}

var bigIntType = reflectx.TypeOf[*big.Int]()

// Prop reads a required property. It panics if the key is missing or its
// value does not fit T.
func Prop[T Scalar](c Container, key string) T {
	v, ok, err := TryProp[T](c, key)
	if err != nil {
		panic(err)
	}
	if !ok {
		panic(&errorx.PropertyMissingError{Key: key, Type: reflectx.TypeOf[T]()})
	}
	return v
}

// PropOr reads a property, falling back to def when the key is missing.
func PropOr[T Scalar](c Container, key string, def T) T {
	v, ok, err := TryProp[T](c, key)
	if err != nil {
		panic(err)
	}
	if !ok {
		return def
	}
	return v
}

// OptionalProp returns nil when the key is missing.
func OptionalProp[T Scalar](c Container, key string) *T {
	v, ok, err := TryProp[T](c, key)
	if err != nil {
		panic(err)
	}
	if !ok {
		return nil
	}
	return &v
}

func TryProp[T Scalar](c Container, key string) (T, bool, error) {
	var zero T
	v, ok, err := resolveScalar(c.Config(), key, reflectx.TypeOf[T]())
	if err != nil || !ok {
		return zero, ok, err
	}
	return v.Interface().(T), true, nil
}

// PropStruct decodes the tree under key into T. The empty key decodes the
// whole configuration.
func PropStruct[T any](c Container, key string) T {
	var v T
	found, err := c.Config().Unmarshal(key, &v)
	if err != nil {
		panic(&errorx.PropertyCoercionError{Key: key, Type: reflectx.TypeOf[T](), Err: err})
	}
	if !found {
		panic(&errorx.PropertyMissingError{Key: key, Type: reflectx.TypeOf[T]()})
	}
	return v
}

// resolveScalar reads key as a value of type t. Narrowing conversions are
// range checked. A missing key is reported with ok=false.
func resolveScalar(store *config.Store, key string, t reflect.Type) (reflect.Value, bool, error) {
	raw, ok := store.Lookup(key)
	if !ok {
		return reflect.Value{}, false, nil
	}
	v, err := coerce(raw, t)
	if err != nil {
		return reflect.Value{}, true, &errorx.PropertyCoercionError{Key: key, Value: raw, Type: t, Err: err}
	}
	return v, true, nil
}

func coerce(raw any, t reflect.Type) (reflect.Value, error) {
	if t == bigIntType {
		switch x := raw.(type) {
		case uint64:
			return reflect.ValueOf(new(big.Int).SetUint64(x)), nil
		case string:
			if b, ok := new(big.Int).SetString(strings.TrimSpace(x), 10); ok {
				return reflect.ValueOf(b), nil
			}
		}
		n, err := config.AsInt(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(big.NewInt(n)), nil
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := config.AsInt(raw)
		if err != nil {
			return v, err
		}
		if v.OverflowInt(n) {
			return v, fmt.Errorf("%d out of range", n)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := asUint(raw)
		if err != nil {
			return v, err
		}
		if v.OverflowUint(u) {
			return v, fmt.Errorf("%d out of range", u)
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := config.AsFloat(raw)
		if err != nil {
			return v, err
		}
		if v.OverflowFloat(f) {
			return v, fmt.Errorf("%v out of range", f)
		}
		v.SetFloat(f)
	case reflect.String:
		s, err := config.AsString(raw)
		if err != nil {
			return v, err
		}
		v.SetString(s)
	case reflect.Bool:
		b, err := config.AsBool(raw)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	default:
		return v, fmt.Errorf("unsupported property type")
	}
	return v, nil
}

// asUint accepts values above MaxInt64, which the store keeps as uint64.
func asUint(raw any) (uint64, error) {
	switch x := raw.(type) {
	case uint64:
		return x, nil
	case string:
		if u, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64); err == nil {
			return u, nil
		}
	}
	n, err := config.AsInt(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

// propTag is a parsed `prop:"name,default=value"` or `prop:",root"` tag.
type propTag struct {
	key  string
	root bool
	def  *reflect.Value
}

func parsePropTag(tag string, field reflect.StructField) (propTag, error) {
	name, opt, _ := strings.Cut(tag, ",")
	p := propTag{key: strings.TrimSpace(name)}
	if p.key == "" {
		p.key = strings.ToLower(field.Name)
	}

	switch {
	case opt == "":
	case opt == "root":
		p.root = true
		p.key = ""
	case strings.HasPrefix(opt, "default="):
		target := field.Type
		if target.Kind() == reflect.Pointer && target != bigIntType {
			target = target.Elem()
		}
		v, err := coerce(strings.TrimPrefix(opt, "default="), target)
		if err != nil {
			return p, fmt.Errorf("field %s: default: %w", field.Name, err)
		}
		p.def = &v
	default:
		return p, fmt.Errorf("field %s: unknown prop option %q", field.Name, opt)
	}
	return p, nil
}

// resolve reads the property into a value of type t. Pointer fields are
// optional, struct, slice and map fields are decoded as a whole tree.
func (p propTag) resolve(store *config.Store, t reflect.Type) (reflect.Value, error) {
	target, optional := t, false
	if t.Kind() == reflect.Pointer && t != bigIntType {
		target, optional = t.Elem(), true
	}

	switch target.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Map:
		out := reflect.New(target)
		found, err := store.Unmarshal(p.key, out.Interface())
		if err != nil {
			return reflect.Value{}, &errorx.PropertyCoercionError{Key: p.key, Type: target, Err: err}
		}
		if !found {
			if optional {
				return reflect.Zero(t), nil
			}
			return reflect.Value{}, &errorx.PropertyMissingError{Key: p.key, Type: target}
		}
		if optional {
			return out, nil
		}
		return out.Elem(), nil
	}

	v, ok, err := resolveScalar(store, p.key, target)
	if err != nil {
		return reflect.Value{}, err
	}
	if !ok {
		switch {
		case p.def != nil:
			v = *p.def
		case optional:
			return reflect.Zero(t), nil
		default:
			return reflect.Value{}, &errorx.PropertyMissingError{Key: p.key, Type: target}
		}
	}

	if optional {
		ptr := reflect.New(target)
		ptr.Elem().Set(v)
		return ptr, nil
	}
	return v, nil
}
