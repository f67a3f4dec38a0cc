package bot

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Checker is one predicate of a Condition.
type Checker func(c *Context) (bool, error)

// Condition holds when all of its checkers hold. An empty condition always holds.
type Condition []Checker

var errCheckFailed = errors.New("check failed")

func All(checkers ...Checker) Condition {
	return Condition(checkers)
}

// And returns a new condition that also requires others.
func (cd Condition) And(others ...Condition) Condition {
	out := make(Condition, 0, len(cd))
	out = append(out, cd...)
	for _, o := range others {
		out = append(out, o...)
	}
	return out
}

// Check runs every checker concurrently. A false result, an error or a
// panic from any checker makes the condition false and cancels the rest.
func (cd Condition) Check(c *Context) bool {
	if len(cd) == 0 {
		return true
	}
	g, gctx := errgroup.WithContext(c.Context())
	cc := c.withContext(gctx)
	for _, chk := range cd {
		chk := chk
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("checker: %w", &PanicError{Value: r})
				}
			}()
			ok, err := chk(cc)
			if err != nil {
				return err
			}
			if !ok {
				return errCheckFailed
			}
			return nil
		})
	}
	return g.Wait() == nil
}

// Is lifts a plain predicate into a Checker.
func Is(pred func(c *Context) bool) Checker {
	return func(c *Context) (bool, error) {
		return pred(c), nil
	}
}
