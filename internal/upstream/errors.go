package upstream

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoStream is returned when the upstream accepted the request but sent no
// body to stream.
var ErrNoStream = errors.New("no response stream from upstream")

// StatusError reports a non-2xx answer from the upstream API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d %s", e.Provider, e.StatusCode, e.Body)
}
