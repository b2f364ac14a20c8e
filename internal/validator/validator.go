package validator

import (
	"fmt"
	"reflect"
)

// Validate reports an error naming the component when any dependency is nil or zero.
func Validate(name string, deps ...any) error {
	for _, dep := range deps {
		if missing(dep) {
			return fmt.Errorf("missing required deps for component: %s", name)
		}
	}

	return nil
}

func missing(dep any) bool {
	if dep == nil {
		return true
	}

	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
