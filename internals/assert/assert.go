// Package assert panics on broken programming invariants.
package assert

import "fmt"

// Assert panics with msg when condition is false.
func Assert(condition bool, msg string, other ...any) {
	if condition {
		return
	}
	if len(other) > 0 {
		panic(fmt.Sprintf("%s %v", msg, other))
	}
	panic(msg)
}

// AssertNil panics with msg and err when err is not nil.
func AssertNil(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
