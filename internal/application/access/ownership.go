package access

import (
	"reflect"

	"github.com/revalya/tenantaccess/internal/domain/tenant"
)

// foreignOwner walks a body result and returns the owner of the first record
// that does not belong to tenantID. tenant.Owned values are looked for behind
// pointers, in slices, arrays and map values, and in exported struct fields.
// Results holding no tenant.Owned value pass.
func foreignOwner(v any, tenantID string) (string, bool) {
	if v == nil {
		return "", false
	}
	w := ownerWalk{tenantID: tenantID, seen: make(map[uintptr]struct{})}
	return w.walk(reflect.ValueOf(v))
}

type ownerWalk struct {
	tenantID string
	seen     map[uintptr]struct{}
}

func (w *ownerWalk) walk(rv reflect.Value) (string, bool) {
	if !rv.IsValid() {
		return "", false
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return "", false
		}
	}

	if rv.CanInterface() {
		if o, ok := rv.Interface().(tenant.Owned); ok {
			if owner := o.OwnerTenantID(); owner != w.tenantID {
				return owner, true
			}
			return "", false
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if _, ok := w.seen[rv.Pointer()]; ok {
			return "", false
		}
		w.seen[rv.Pointer()] = struct{}{}
		return w.walk(rv.Elem())
	case reflect.Interface:
		return w.walk(rv.Elem())
	case reflect.Slice, reflect.Array:
		if !mayHoldOwned(rv.Type().Elem()) {
			return "", false
		}
		for i := 0; i < rv.Len(); i++ {
			if owner, bad := w.walk(rv.Index(i)); bad {
				return owner, true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if owner, bad := w.walk(iter.Value()); bad {
				return owner, true
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if owner, bad := w.walk(rv.Field(i)); bad {
				return owner, true
			}
		}
	}
	return "", false
}

// mayHoldOwned is false for element types that cannot contain a tenant.Owned
// value, so large scalar slices are not walked
func mayHoldOwned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return t.Implements(reflect.TypeOf((*tenant.Owned)(nil)).Elem())
}
