package errorx

import (
	"fmt"
	"reflect"
	"strings"
)

type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("ArgumentError: %v", e.Message)
}

func NewArgumentError(message string) *ArgumentError {
	return &ArgumentError{message}
}

type ConfigLoadError struct {
	Source string
	Err    error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("ConfigLoadError: %v: %v", e.Source, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

type PropertyMissingError struct {
	Key  string
	Type reflect.Type
}

func (e *PropertyMissingError) Error() string {
	return fmt.Sprintf("Property %q not found (required %v)", e.Key, e.Type)
}

type PropertyCoercionError struct {
	Key   string
	Value any
	Type  reflect.Type
	Err   error
}

func (e *PropertyCoercionError) Error() string {
	s := fmt.Sprintf("Can't parse prop %q: value %v (%T) is not a valid %v", e.Key, e.Value, e.Value, e.Type)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *PropertyCoercionError) Unwrap() error {
	return e.Err
}

type UninitializedDeferredError struct {
	Type reflect.Type
}

func (e *UninitializedDeferredError) Error() string {
	return fmt.Sprintf("UninitializedDeferredError: deferred '%v' must be initialized before the first usage", e.Type)
}

type DeferredAlreadyInitializedError struct {
	Type reflect.Type
}

func (e *DeferredAlreadyInitializedError) Error() string {
	return fmt.Sprintf("DeferredAlreadyInitializedError: deferred '%v' is already initialized", e.Type)
}

type CircularDependencyError struct {
	Message string
	Path    []reflect.Type
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("CircularDependencyError: %v", e.Message)
}

type FuncSignatureError struct {
	Message string
}

func (e *FuncSignatureError) Error() string {
	return fmt.Sprintf("FuncSignatureError: %v", e.Message)
}

type ServiceNotFound struct {
	ServiceType reflect.Type
	Profile     string
}

func (e *ServiceNotFound) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("ServiceNotFound '%v'", e.ServiceType)
	}
	return fmt.Sprintf("ServiceNotFound '%v' in profile %q", e.ServiceType, e.Profile)
}

type AmbiguousBindingError struct {
	ServiceType reflect.Type
	Profile     string
	Bindings    []string
}

func (e *AmbiguousBindingError) Error() string {
	return fmt.Sprintf("AmbiguousBindingError: '%v' has %d bindings in profile %q: %v",
		e.ServiceType, len(e.Bindings), e.Profile, strings.Join(e.Bindings, ", "))
}

type MissingBindingError struct {
	ServiceType reflect.Type
	Dependency  reflect.Type
	Profile     string
}

func (e *MissingBindingError) Error() string {
	return fmt.Sprintf("MissingBindingError: '%v' depends on '%v' which has no binding in profile %q",
		e.ServiceType, e.Dependency, e.Profile)
}

type InvalidBinding struct {
	ServiceType reflect.Type
	Message     string
}

func (e *InvalidBinding) Error() string {
	return fmt.Sprintf("InvalidBinding '%v': %v", e.ServiceType, e.Message)
}

type TypeIdentityError struct {
	To   reflect.Type
	From reflect.Type
}

func (e *TypeIdentityError) Error() string {
	return fmt.Sprintf("TypeIdentityError: the value of type '%v' can not be retrieved as '%v'", e.From, e.To)
}

type ObjectDisposedError struct {
	Message string
}

func (e *ObjectDisposedError) Error() string {
	return fmt.Sprintf("ObjectDisposedError: %v", e.Message)
}

type ContainerFaultedError struct {
	Cause error
}

func (e *ContainerFaultedError) Error() string {
	return fmt.Sprintf("ContainerFaultedError: an earlier construction failed: %v", e.Cause)
}

func (e *ContainerFaultedError) Unwrap() error {
	return e.Cause
}

type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Add(err error) {
	e.Errors = append(e.Errors, err)
}

func (e *AggregateError) Len() int {
	return len(e.Errors)
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	b.WriteString("AggregateError: \n")
	for _, e := range e.Errors {
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return b.String()
}
