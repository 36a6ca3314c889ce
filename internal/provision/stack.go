package provision

import (
	"context"
	"errors"
)

type (
	// Stack is a LIFO queue of 'Destructor's which, when called, tear down a
	// resource in the reverse order it was discovered or created.
	Stack struct {
		Destructors []Destructor
	}
	Destructor func(ctx context.Context) error
)

// Push adds a destructor to the 'Destructors' slice, to be destroyed in the
// reverse order they were added.
func (s *Stack) Push(d Destructor) {
	s.Destructors = append(s.Destructors, d)
}

// Destroy calls all accumulated destructors in the reverse order they were
// added, returning all encountered errors joined.
//
// Destruction does not stop at the first failure. A partial teardown removes
// everything it still can.
func (s *Stack) Destroy(ctx context.Context) error {
	var errs error
	for i := len(s.Destructors) - 1; i >= 0; i-- {
		errs = errors.Join(errs, s.Destructors[i](ctx))
	}
	return errs
}
