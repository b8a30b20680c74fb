package launch

import (
	"errors"
	"fmt"
)

var (
	ErrLaunch = errors.New("launch failed")
)

// Returned when the launched process exits with a non-zero status.
type ExitError struct {
	Code int // Exit status of the process.
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}
