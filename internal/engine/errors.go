package engine

import "fmt"

// CollaboratorError wraps a failure of an external collaborator (capture,
// detect, activate). The step it names is abandoned; the node under
// consideration stays pending and may be retried on a later cycle.
type CollaboratorError struct {
	Step string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s failed: %v", e.Step, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func collaboratorErr(step string, err error) error {
	return &CollaboratorError{Step: step, Err: err}
}
