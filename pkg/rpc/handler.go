package rpc

import (
	"context"
	"errors"
	"sort"
)

// ErrUnknownMethod is wrapped by the error Dispatch returns for an
// unregistered method.
var ErrUnknownMethod = errors.New("unknown method")

// Handler is the interface for request handlers
type Handler interface {
	// Handle processes the request params and returns the result
	Handle(ctx context.Context, params Params) (any, error)
}

// HandlerFunc is a function type that implements Handler
type HandlerFunc func(ctx context.Context, params Params) (any, error)

// Handle implements the Handler interface
func (f HandlerFunc) Handle(ctx context.Context, params Params) (any, error) {
	return f(ctx, params)
}

// Dispatcher routes requests to handlers by method. Registration happens
// before serving; Dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates a new request dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
	}
}

// Register registers a handler for a method
func (d *Dispatcher) Register(method string, handler Handler) {
	d.handlers[method] = handler
}

// RegisterFunc registers a handler function for a method
func (d *Dispatcher) RegisterFunc(method string, handler HandlerFunc) {
	d.handlers[method] = handler
}

// Dispatch routes a request to the handler registered for its method
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params Params) (any, error) {
	handler, ok := d.handlers[method]
	if !ok {
		return nil, &unknownMethodError{method: method}
	}
	return handler.Handle(ctx, params)
}

// HasHandler returns true if a handler is registered for the method
func (d *Dispatcher) HasHandler(method string) bool {
	_, ok := d.handlers[method]
	return ok
}

// Methods lists the registered methods in sorted order.
func (d *Dispatcher) Methods() []string {
	methods := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

type unknownMethodError struct {
	method string
}

func (e *unknownMethodError) Error() string {
	return "unknown method: " + e.method
}

func (e *unknownMethodError) Unwrap() error {
	return ErrUnknownMethod
}
