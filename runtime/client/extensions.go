package client

import (
	"context"
	"time"

	"github.com/voilab/acedao/internal/debug"
)

// ExtensionContext describes one client operation
type ExtensionContext struct {
	Context   context.Context
	Table     string // Base table
	Operation string // select, delete or save
	Args      any    // Query configuration, id or saved data
	Result    any    // Set before the After hooks run
	Error     error  // Set before the After hooks run
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// Extension hooks into client operations. A Before hook returning an error
// aborts the operation; an After hook returning an error replaces its result.
type Extension struct {
	Name   string
	Before func(ctx *ExtensionContext) error
	After  func(ctx *ExtensionContext) error
}

// ExtensionChain manages a chain of extensions
type ExtensionChain struct {
	extensions []Extension
}

// NewExtensionChain creates a new extension chain
func NewExtensionChain() *ExtensionChain {
	return &ExtensionChain{}
}

// Add adds an extension to the chain
func (ec *ExtensionChain) Add(ext Extension) {
	ec.extensions = append(ec.extensions, ext)
}

// Len returns the number of extensions
func (ec *ExtensionChain) Len() int {
	return len(ec.extensions)
}

// Execute runs exec between the Before hooks, in order, and the After hooks,
// in reverse order.
func (ec *ExtensionChain) Execute(ctx context.Context, table, operation string, args any, exec func() (any, error)) (any, error) {
	if len(ec.extensions) == 0 {
		return exec()
	}

	extCtx := &ExtensionContext{
		Context:   ctx,
		Table:     table,
		Operation: operation,
		Args:      args,
		StartTime: time.Now(),
	}

	for _, ext := range ec.extensions {
		if ext.Before != nil {
			if err := ext.Before(extCtx); err != nil {
				return nil, err
			}
		}
	}

	result, err := exec()
	extCtx.Result = result
	extCtx.Error = err
	extCtx.EndTime = time.Now()
	extCtx.Duration = extCtx.EndTime.Sub(extCtx.StartTime)

	for i := len(ec.extensions) - 1; i >= 0; i-- {
		ext := ec.extensions[i]
		if ext.After != nil {
			if err := ext.After(extCtx); err != nil {
				return result, err
			}
		}
	}

	return result, err
}

// LoggingExtension logs operations on the debug logger
func LoggingExtension() Extension {
	return Extension{
		Name: "logging",
		Before: func(ctx *ExtensionContext) error {
			debug.Debug("operation started", "table", ctx.Table, "op", ctx.Operation)
			return nil
		},
		After: func(ctx *ExtensionContext) error {
			if ctx.Error != nil {
				debug.Error("operation failed", "table", ctx.Table, "op", ctx.Operation, "error", ctx.Error, "duration", ctx.Duration)
			} else {
				debug.Debug("operation completed", "table", ctx.Table, "op", ctx.Operation, "duration", ctx.Duration)
			}
			return nil
		},
	}
}

// TimingExtension creates an extension that measures operation timing
func TimingExtension(onTiming func(table, operation string, duration time.Duration)) Extension {
	return Extension{
		Name: "timing",
		After: func(ctx *ExtensionContext) error {
			if onTiming != nil {
				onTiming(ctx.Table, ctx.Operation, ctx.Duration)
			}
			return nil
		},
	}
}

// ErrorHandlingExtension creates an extension that handles errors
func ErrorHandlingExtension(onError func(table, operation string, err error)) Extension {
	return Extension{
		Name: "error-handling",
		After: func(ctx *ExtensionContext) error {
			if ctx.Error != nil && onError != nil {
				onError(ctx.Table, ctx.Operation, ctx.Error)
			}
			return nil
		},
	}
}
