package server

import (
	"context"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// ObjectDelimiter joins the object prefix and method name.
const ObjectDelimiter = "."

// RegisterObject 扫描 rcvr 的导出方法，注册符合签名的方法
//
// Every exported method of the form
//
//	func (r *T) Name(ctx context.Context, args any) (any, error)
//
// is registered as "<prefix>.name" (first letter lowered). With an empty
// prefix the bare method name is used. It returns the registered names.
func (svr *Server) RegisterObject(prefix string, rcvr any) ([]string, error) {
	val := reflect.ValueOf(rcvr)
	if !val.IsValid() {
		return nil, fmt.Errorf("server: nil receiver")
	}
	typ := val.Type()

	var names []string
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		fn, ok := val.Method(i).Interface().(func(context.Context, any) (any, error))
		if !ok {
			continue
		}
		name := lowerFirst(method.Name)
		if prefix != "" {
			name = prefix + ObjectDelimiter + name
		}
		if err := svr.Register(name, HandlerFunc(fn)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("server: %s has no methods of the form func(context.Context, any) (any, error)", typ)
	}
	return names, nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
