package client

import (
	"context"
	"time"

	"github.com/voilab/acedao/internal/debug"
	"github.com/voilab/acedao/query/executor"
)

// QueryEvent represents one call to the database port
type QueryEvent struct {
	Op       string
	Query    string
	Params   map[string]any
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware is a function that intercepts database calls
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// middlewareDB runs every port call through the middleware chain.
type middlewareDB struct {
	next        executor.Database
	middlewares []Middleware
}

func (m *middlewareDB) Execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	var n int64
	err := m.run(ctx, "execute", query, params, func() error {
		var err error
		n, err = m.next.Execute(ctx, query, params)
		return err
	})
	return n, err
}

func (m *middlewareDB) All(ctx context.Context, query string, params map[string]any) ([]executor.Row, error) {
	var rows []executor.Row
	err := m.run(ctx, "all", query, params, func() error {
		var err error
		rows, err = m.next.All(ctx, query, params)
		return err
	})
	return rows, err
}

func (m *middlewareDB) One(ctx context.Context, query string, params map[string]any) (executor.Row, error) {
	var row executor.Row
	err := m.run(ctx, "one", query, params, func() error {
		var err error
		row, err = m.next.One(ctx, query, params)
		return err
	})
	return row, err
}

// run executes a call with the middleware chain
func (m *middlewareDB) run(ctx context.Context, op, query string, params map[string]any, exec func() error) error {
	event := &QueryEvent{
		Op:     op,
		Query:  query,
		Params: params,
		Start:  time.Now(),
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(m.middlewares) {
			// Last middleware, execute the actual call
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		middleware := m.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every call on the debug logger
func LoggingMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		debug.Debug("executing query", "op", event.Op, "sql", event.Query, "params", event.Params)
		err := next()
		if err != nil {
			debug.Error("query failed", "op", event.Op, "error", err)
		} else {
			debug.Debug("query completed", "op", event.Op, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures query execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
