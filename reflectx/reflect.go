package reflectx

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unsafe"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func GetOutParameters(funcType reflect.Type) []reflect.Type {
	if funcType.Kind() != reflect.Func {
		panic(fmt.Errorf("the kind of type '%v' is not function", funcType))
	}
	n := funcType.NumOut()
	paramTypes := make([]reflect.Type, n)
	for i := 0; i < n; i++ {
		paramTypes[i] = funcType.Out(i)
	}
	return paramTypes
}

func GetInParameters(funcType reflect.Type) []reflect.Type {
	if funcType.Kind() != reflect.Func {
		panic(fmt.Errorf("the kind of type '%v' is not function", funcType))
	}
	n := funcType.NumIn()
	paramTypes := make([]reflect.Type, n)
	for i := 0; i < n; i++ {
		paramTypes[i] = funcType.In(i)
	}
	return paramTypes
}

func IsErrorType(t reflect.Type) bool {
	return t.AssignableTo(errorType)
}

// Short function name without the package path.
func GetFuncName(f any) string {
	rv := reflect.ValueOf(f)
	if rv.Kind() != reflect.Func {
		panic("the argument is not a function")
	}
	name := runtime.FuncForPC(rv.Pointer()).Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Nilable reports whether the zero value of t is nil.
func Nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// StructOf returns the struct type behind t, which is either a struct or a pointer to one.
func StructOf(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// Settable returns a settable view of the field, exported or not.
// The field must be addressable.
func Settable(field reflect.Value) reflect.Value {
	if field.CanSet() {
		return field
	}
	return reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
}
