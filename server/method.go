package server

import (
	"context"
	"fmt"
	"sort"
)

// Method describes one callable method: its name, its parameter shape, and
// its invocation function. The three pieces implement the decode → invoke →
// encode contract the dispatcher runs per request.
type Method struct {
	// Name is the exact method name matched against the query (without the
	// leading slash). No wildcards, no case folding.
	Name string

	// NewParams returns a pointer to a fresh zero value of the parameter
	// shape for the payload codec to decode into. Nil means the method takes
	// no parameters and the request body is ignored.
	NewParams func() any

	// Invoke runs the handler. params is the pointer produced by NewParams
	// (nil for parameterless methods). A returned error is a domain failure,
	// not a protocol error: the dispatcher maps it to an invalid_body
	// response and the connection keeps serving.
	Invoke func(ctx context.Context, params any) (any, error)
}

// Registry is the immutable method table shared by every connection worker.
// It is built once before the server starts and never mutated afterwards,
// so no synchronization is needed.
type Registry struct {
	methods map[string]*Method
}

// NewRegistry builds a registry from the given methods. Duplicate names are
// rejected so a misconfigured method set fails at startup, not dispatch.
func NewRegistry(methods ...*Method) (*Registry, error) {
	r := &Registry{methods: make(map[string]*Method, len(methods))}
	for _, m := range methods {
		if m.Name == "" || m.Invoke == nil {
			return nil, fmt.Errorf("server: method %q missing name or invoke", m.Name)
		}
		if _, dup := r.methods[m.Name]; dup {
			return nil, fmt.Errorf("server: duplicate method %q", m.Name)
		}
		r.methods[m.Name] = m
	}
	return r, nil
}

// Lookup resolves a method by exact name.
func (r *Registry) Lookup(name string) (*Method, bool) {
	m, ok := r.methods[name]
	return m, ok
}

// Names returns the registered method names, making the method set
// enumerable for tests and diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
