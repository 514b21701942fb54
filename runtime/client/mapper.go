package client

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/voilab/acedao/query/mapper"
)

// Decode copies a hydrated record into the struct pointed to by dst. Fields
// match on their db tag, then on their name (case-insensitive). Nested
// records fill struct or pointer fields, lists of records fill slices.
// Unmatched keys are ignored.
func Decode(rec mapper.Record, dst any) error {
	val := reflect.ValueOf(dst)
	if val.Kind() != reflect.Pointer || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode: destination must be a non-nil pointer to a struct, got %T", dst)
	}
	return decodeStruct(rec, val.Elem())
}

// DecodeAll decodes every record of res.
func DecodeAll[T any](res *mapper.Result) ([]T, error) {
	out := make([]T, 0, res.Len())
	for _, rec := range res.Records() {
		var item T
		if err := Decode(rec, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeStruct(rec mapper.Record, val reflect.Value) error {
	typ := val.Type()
	for key, v := range rec {
		field, ok := findFieldByName(typ, key)
		if !ok || v == nil {
			continue
		}
		if err := assign(val.FieldByIndex(field.Index), v); err != nil {
			return fmt.Errorf("decode %s.%s: %w", typ.Name(), field.Name, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, v any) error {
	switch src := v.(type) {
	case mapper.Record:
		return assignRecord(dst, src)
	case []mapper.Record:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("cannot store a list in %s", dst.Type())
		}
		list := reflect.MakeSlice(dst.Type(), len(src), len(src))
		for i, rec := range src {
			if err := assignRecord(list.Index(i), rec); err != nil {
				return err
			}
		}
		dst.Set(list)
		return nil
	}

	sv := reflect.ValueOf(v)
	if dst.Kind() == reflect.Pointer {
		ptr := reflect.New(dst.Type().Elem())
		if err := assign(ptr.Elem(), v); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case numeric(sv.Kind()) && numeric(dst.Kind()):
		dst.Set(sv.Convert(dst.Type()))
	case sv.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(sv.String())
	default:
		return fmt.Errorf("cannot store %T in %s", v, dst.Type())
	}
	return nil
}

func assignRecord(dst reflect.Value, rec mapper.Record) error {
	switch {
	case dst.Kind() == reflect.Struct:
		return decodeStruct(rec, dst)
	case dst.Kind() == reflect.Pointer && dst.Type().Elem().Kind() == reflect.Struct:
		ptr := reflect.New(dst.Type().Elem())
		if err := decodeStruct(rec, ptr.Elem()); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	case dst.Kind() == reflect.Map && dst.Type().Key().Kind() == reflect.String:
		m := reflect.ValueOf(map[string]any(rec))
		if !m.Type().AssignableTo(dst.Type()) {
			return fmt.Errorf("cannot store a record in %s", dst.Type())
		}
		dst.Set(m)
		return nil
	}
	return fmt.Errorf("cannot store a record in %s", dst.Type())
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// findFieldByName finds a struct field by record key (db tag or field name)
func findFieldByName(typ reflect.Type, key string) (reflect.StructField, bool) {
	var fallback reflect.StructField
	found := false
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		if dbTag := field.Tag.Get("db"); dbTag != "" {
			name, _, _ := strings.Cut(dbTag, ",")
			if name == "-" {
				continue
			}
			if name == key {
				return field, true
			}
		}
		if !found && strings.EqualFold(field.Name, key) {
			fallback, found = field, true
		}
	}
	return fallback, found
}
