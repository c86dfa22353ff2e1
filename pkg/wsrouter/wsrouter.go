// Package wsrouter dispatches {type, data} WebSocket envelopes to handlers
// registered with a concrete input type. Only registered types are accepted
// and every payload is decoded and validated before the handler runs.
package wsrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
)

type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, input T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error returned while routing one message.
// The read loop keeps running afterwards.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type ValidateFunc func(input any) error

type route struct {
	decode  func(json.RawMessage) (any, error)
	handler HandlerFunc[any]
}

type WSRouter struct {
	routes      map[string]route
	middlewares []Middleware
	validate    ValidateFunc
	onError     ErrorHandler
}

type Option func(*WSRouter)

func WithValidator(fn ValidateFunc) Option {
	return func(r *WSRouter) {
		r.validate = fn
	}
}

func WithErrorHandler(fn ErrorHandler) Option {
	return func(r *WSRouter) {
		r.onError = fn
	}
}

func New(opts ...Option) *WSRouter {
	r := &WSRouter{
		routes:   make(map[string]route),
		validate: func(any) error { return nil },
		onError:  func(context.Context, *websocket.Conn, error) {},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

// Handle registers handler for messageType. It is a function rather than a
// method because methods cannot take type parameters.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var input T
			if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				return input, nil
			}

			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
			}

			return input, nil
		},
		handler: func(ctx context.Context, conn *websocket.Conn, input any) error {
			return handler(ctx, conn, input.(T))
		},
	}
}

func (r *WSRouter) HasRoute(messageType string) bool {
	_, ok := r.routes[messageType]
	return ok
}

// Dispatch routes a single raw frame.
func (r *WSRouter) Dispatch(ctx context.Context, conn *websocket.Conn, raw []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	rt, ok := r.routes[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	input, err := rt.decode(msg.Data)
	if err != nil {
		return err
	}

	if err := r.validate(input); err != nil {
		return err
	}

	ctx = context.WithValue(ctx, messageTypeKey, msg.Type)

	handler := rt.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	return handler(ctx, conn, input)
}

func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := r.Dispatch(ctx, conn, raw); err != nil {
			r.onError(ctx, conn, err)
		}
	}
}
