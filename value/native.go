package value

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

var (
	valueType    = reflect.TypeOf(Value{})
	dateTimeType = reflect.TypeOf(DateTime{})
	timeType     = reflect.TypeOf(time.Time{})
)

// FromNative wraps Go data into a Value, inferring the wire type:
//
//	bool                      → boolean
//	integers within int32     → int (wider integers → double)
//	floats                    → double
//	DateTime, time.Time       → dateTime.iso8601
//	Base64, []byte            → base64
//	*Struct, maps             → array if keys are exactly "0".."n-1" in order, else struct
//	slices, arrays            → array
//	Go structs                → struct (exported fields, `xmlrpc:"name"` tag, "-" skips)
//	nil                       → empty string
//	anything else             → string
//
// A Value is passed through unchanged.
func FromNative(data any) Value {
	switch d := data.(type) {
	case nil:
		return NewString("")
	case Value:
		return d
	case *Value:
		if d == nil {
			return NewString("")
		}
		return *d
	case DateTime:
		return NewDateTime(d)
	case *DateTime:
		if d == nil {
			return NewString("")
		}
		return NewDateTime(*d)
	case time.Time:
		return NewDateTime(DateTimeFromTime(d))
	case Base64:
		return NewBase64(d)
	case []byte:
		return NewBase64(d)
	case *Struct:
		if d == nil {
			return NewString("")
		}
		return fromKeyed(d.keys, func(k string) any { return d.values[k] })
	case bool:
		return NewBoolean(d)
	case string:
		return NewString(d)
	}
	return fromReflect(reflect.ValueOf(data))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NewString("")
		}
		return FromNative(rv.Elem().Interface())
	case reflect.Bool:
		return NewBoolean(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt32 {
			return NewInt(int32(u))
		}
		return NewDouble(float64(u))
	case reflect.Float32, reflect.Float64:
		return NewDouble(rv.Float())
	case reflect.String:
		return NewString(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return NewArray()
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return NewBase64(rv.Bytes())
		}
		return fromList(rv)
	case reflect.Array:
		return fromList(rv)
	case reflect.Map:
		return fromMap(rv)
	case reflect.Struct:
		switch rv.Type() {
		case valueType, dateTimeType, timeType:
			return FromNative(rv.Interface())
		}
		return fromGoStruct(rv)
	}
	if rv.IsValid() && rv.CanInterface() {
		return NewString(fmt.Sprint(rv.Interface()))
	}
	return NewString("")
}

func fromInt64(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return NewInt(int32(i))
	}
	return NewDouble(float64(i))
}

func fromList(rv reflect.Value) Value {
	items := make([]Value, rv.Len())
	for i := range items {
		items[i] = FromNative(rv.Index(i).Interface())
	}
	return Value{kind: KindArray, items: items}
}

// fromMap orders keys numerically when every key is a decimal integer and
// lexically otherwise, then applies the same array test as *Struct.
func fromMap(rv reflect.Value) Value {
	keys := make([]string, 0, rv.Len())
	byKey := make(map[string]reflect.Value, rv.Len())
	numeric := true
	for iter := rv.MapRange(); iter.Next(); {
		k := fmt.Sprint(iter.Key().Interface())
		if _, err := strconv.ParseInt(k, 10, 64); err != nil {
			numeric = false
		}
		keys = append(keys, k)
		byKey[k] = iter.Value()
	}
	if numeric {
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.ParseInt(keys[i], 10, 64)
			b, _ := strconv.ParseInt(keys[j], 10, 64)
			return a < b
		})
	} else {
		sort.Strings(keys)
	}
	return fromKeyed(keys, func(k string) any { return byKey[k].Interface() })
}

func fromKeyed(keys []string, get func(string) any) Value {
	if isList(keys) {
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = FromNative(get(k))
		}
		return Value{kind: KindArray, items: items}
	}
	members := make([]Member, len(keys))
	for i, k := range keys {
		members[i] = Member{Name: k, Value: FromNative(get(k))}
	}
	return NewStructValue(members...)
}

// isList reports whether keys are exactly "0", "1", ..., "n-1" in order.
// An empty key set is a list.
func isList(keys []string) bool {
	for i, k := range keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func fromGoStruct(rv reflect.Value) Value {
	t := rv.Type()
	members := make([]Member, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("xmlrpc"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		members = append(members, Member{Name: name, Value: FromNative(rv.Field(i).Interface())})
	}
	return NewStructValue(members...)
}
