package postgres

import (
	"reflect"
	"sync"
)

// Columns returns the "db" tagged column names of T in field order,
// flattening embedded structs. Fields tagged "-" are skipped.
//
//	cols := Columns[stockMoveRow]()
//	// ["id", "move_no", "move_type", ..., "purchase_order_id", ...]
func Columns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	cols := make([]string, 0, len(meta.fields))
	for _, f := range meta.fields {
		cols = append(cols, f.column)
	}
	return cols
}

type fieldInfo struct {
	index  []int
	column string
}

type typeMetadata struct {
	fields []fieldInfo
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

// metadataFor returns the cached column layout of t.
func metadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		collectFields(t, nil, meta)
	}
	typeCache.Store(t, meta)
	return meta
}

func collectFields(t reflect.Type, prefix []int, meta *typeMetadata) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		tag := field.Tag.Get("db")
		if field.Anonymous && tag == "" && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, index, meta)
			continue
		}
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: index, column: tag})
	}
}

// StructToMap converts a struct to a column -> value map using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

// RowValues returns the values of v for columns, in that order. Unknown
// columns yield nil.
func RowValues(v any, columns []string) []any {
	m := StructToMap(v)
	out := make([]any, len(columns))
	for i, col := range columns {
		out[i] = m[col]
	}
	return out
}
