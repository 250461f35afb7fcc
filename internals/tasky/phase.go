package tasky

import (
	"fmt"

	"github.com/Oudwins/walletgate/internals/failure"
)

type Phase int32

const (
	NotStarted Phase = iota
	Running
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Outcome is the terminal value of a task: a result, or a user-facing
// failure when Failure is non-nil.
type Outcome[T any] struct {
	Result  T
	Failure *failure.UserError
}

func (o Outcome[T]) Succeeded() bool { return o.Failure == nil }
