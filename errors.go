package luna

import (
	"errors"
	"fmt"
)

// ErrPromptTooLong means the assembled prompt exceeds the context budget
// even with every history entry removed. This is a configuration fatal:
// the persona prompt itself does not fit, so retrying is pointless.
var ErrPromptTooLong = errors.New("prompt exceeds context budget with empty history")

// ErrHTTP is a transport-level failure from a collaborator service.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
