// README: Outcome of operations whose failure is tolerated (notifications, route flushes).
package types

import "fmt"

// BestEffort reports the result of a call the caller is allowed to ignore.
// The zero value means success.
type BestEffort struct {
	Op  string
	Err error
}

func Succeeded(op string) BestEffort {
	return BestEffort{Op: op}
}

func Failed(op string, err error) BestEffort {
	return BestEffort{Op: op, Err: err}
}

func (b BestEffort) OK() bool {
	return b.Err == nil
}

func (b BestEffort) String() string {
	if b.Err == nil {
		return b.Op + ": ok"
	}
	return fmt.Sprintf("%s: %v", b.Op, b.Err)
}
