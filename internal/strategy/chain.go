// Package strategy runs ordered fallback chains: each strategy is tried until one yields a value.
package strategy

import (
	"context"
)

// Strategy is one named alternative in a chain.
type Strategy[In, Out any] struct {
	Name string
	Run  func(ctx context.Context, in In) (Out, bool, error)
}

// Attempt records the outcome of a strategy that did not produce a value.
type Attempt struct {
	Strategy string
	Err      error
}

// Result is the outcome of a chain run.
type Result[Out any] struct {
	Value    Out
	Strategy string
	Found    bool
	Attempts []Attempt
}

// Run tries each strategy in order. Empty results and errors advance to the next strategy;
// the first non-empty success stops the chain. A cancelled context stops the chain early.
func Run[In, Out any](ctx context.Context, in In, chain []Strategy[In, Out]) Result[Out] {
	var res Result[Out]
	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: err})
			return res
		}
		value, ok, err := s.Run(ctx, in)
		if err != nil || !ok {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name, Err: err})
			continue
		}
		res.Value = value
		res.Strategy = s.Name
		res.Found = true
		return res
	}
	return res
}
