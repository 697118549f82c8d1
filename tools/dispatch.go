package tools

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Call is one tool invocation requested by a model.
type Call struct {
	Name      string
	Arguments map[string]any
}

// CallResult is the outcome of one Call.
type CallResult struct {
	Call  Call
	Value any
	Err   error
}

// InvokeAll runs calls concurrently, at most limit at a time (unbounded when
// limit <= 0), and returns their results in the order of calls. A failing
// call does not stop the others. A panic in a tool is re-raised after every
// call has finished.
func InvokeAll(ctx context.Context, inv Invoker, calls []Call, limit int) []CallResult {
	results := make([]CallResult, len(calls))

	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}
	for i, c := range calls {
		p.Go(func() {
			v, err := inv.Invoke(ctx, c.Name, c.Arguments)
			results[i] = CallResult{Call: c, Value: v, Err: err}
		})
	}
	p.Wait()
	return results
}
