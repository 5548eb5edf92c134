package process

import "context"

// Process is a background task driven by the Supervisor. Execute performs
// one pass and must return between invocations rather than block forever.
type Process interface {
	Name() string
	Execute(ctx context.Context) error
}

// Func adapts a function into a Process.
func Func(name string, fn func(ctx context.Context) error) Process {
	return funcProcess{name: name, fn: fn}
}

type funcProcess struct {
	name string
	fn   func(ctx context.Context) error
}

func (f funcProcess) Name() string                      { return f.name }
func (f funcProcess) Execute(ctx context.Context) error { return f.fn(ctx) }
