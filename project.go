package firebird

import (
	"reflect"
)

// Record is one unit of work as the host hands it over: an arbitrary
// JSON-shaped mapping from field names to values. The projector never
// mutates a Record.
type Record = map[string]any

// ProjectedRecord is an ordered selection of values pulled out of one input
// record. Order is the whole point: it is what keeps positional arguments
// aligned with the column list of a statement, so the type carries explicit
// field and value slices instead of leaning on map iteration.
type ProjectedRecord struct {
	fields []string
	values []any
}

// Project shapes records onto the requested fields: one ProjectedRecord per
// input record, in input order, with the field order preserved as given.
// A field missing from a record projects as nil; absence is data, not a
// failure. Present values are copied structurally, so mutating a projection
// afterwards can never reach back into the source record.
func Project(records []Record, fields []string) []ProjectedRecord {
	out := make([]ProjectedRecord, len(records))
	for i, rec := range records {
		out[i] = projectOne(rec, fields)
	}
	return out
}

// projectOne builds the projection of a single record.
func projectOne(rec Record, fields []string) ProjectedRecord {
	p := ProjectedRecord{
		fields: append([]string(nil), fields...),
		values: make([]any, len(fields)),
	}
	for i, f := range fields {
		if v, ok := rec[f]; ok {
			p.values[i] = cloneValue(v)
		}
	}
	return p
}

// Len returns the number of projected fields.
func (p ProjectedRecord) Len() int {
	return len(p.fields)
}

// Fields returns the projected field names in declaration order.
func (p ProjectedRecord) Fields() []string {
	return append([]string(nil), p.fields...)
}

// Values returns the projected values in field order.
func (p ProjectedRecord) Values() []any {
	return append([]any(nil), p.values...)
}

// Value returns the projected value for the named field and whether the
// field was part of the projection at all. A projected-but-absent field
// yields (nil, true).
func (p ProjectedRecord) Value(name string) (any, bool) {
	for i, f := range p.fields {
		if f == name {
			return p.values[i], true
		}
	}
	return nil, false
}

// cloneValue deep-copies a JSON-shaped value so the projection owns its data.
func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil

	// FAST-PATH: the shapes JSON decoding actually produces.
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []byte:
		return append([]byte(nil), t...)
	}

	// Generic fallback for typed maps and slices (map[string]int, []string, ...).
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		m := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), cloneReflected(iter.Value(), rv.Type().Elem()))
		}
		return m.Interface()
	case reflect.Slice:
		s := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s.Index(i).Set(cloneReflected(rv.Index(i), rv.Type().Elem()))
		}
		return s.Interface()
	}

	// Scalars (and anything value-like) copy by assignment.
	return v
}

// cloneReflected clones a reflected element, keeping nil elements valid for
// SetMapIndex/Set (reflect.ValueOf(nil) is the invalid Value).
func cloneReflected(v reflect.Value, elemT reflect.Type) reflect.Value {
	c := cloneValue(v.Interface())
	if c == nil {
		return reflect.Zero(elemT)
	}
	cv := reflect.ValueOf(c)
	if !cv.Type().AssignableTo(elemT) && cv.Type().ConvertibleTo(elemT) {
		cv = cv.Convert(elemT)
	}
	return cv
}
