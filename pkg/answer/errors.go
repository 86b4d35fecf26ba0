package answer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedResponse is returned when the service answered with a success
// status but the payload cannot be used.
var ErrMalformedResponse = errors.New("malformed answer payload")

// StatusError is returned for any non-2xx HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("answering service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("answering service returned status %d: %s", e.StatusCode, e.Body)
}
