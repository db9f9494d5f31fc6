package server

import (
	"context"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// service is one namespace backed by a receiver's exported methods.
type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// newService scans rcvr for methods shaped like
//
//	func (r *T) SetTitle(ctx context.Context, args *Args, reply *Reply) error
//
// and exposes them under their lowerCamel names ("setTitle").
func newService(namespace string, rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, errors.Errorf("server: receiver for %q must be a pointer, got %T", namespace, rcvr)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf("server: receiver for %q must point to a struct, got %s", namespace, typ.Elem().Kind())
	}

	svc := &service{
		name:   namespace,
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	svc.registerMethods()
	if len(svc.method) == 0 {
		return nil, errors.Errorf("server: %T has no methods usable by namespace %q", rcvr, namespace)
	}
	return svc, nil
}

func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		mt := method.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 || mt.Out(0) != errorType {
			continue
		}
		if mt.In(1) != contextType || mt.In(2).Kind() != reflect.Ptr || mt.In(3).Kind() != reflect.Ptr {
			continue
		}
		s.method[lowerFirst(method.Name)] = &methodType{
			method:    method,
			ArgType:   mt.In(2).Elem(),
			ReplyType: mt.In(3).Elem(),
		}
	}
}

func (s *service) call(ctx context.Context, mType *methodType, argv, replyv reflect.Value) error {
	args := [4]reflect.Value{s.rcvr, reflect.ValueOf(ctx), argv, replyv}
	results := mType.method.Func.Call(args[:])
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}

func lowerFirst(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}
