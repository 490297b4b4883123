package llmclient

import (
	"errors"
	"net"

	"github.com/openai/openai-go/v3"

	"github.com/faithleysath/aigmbot/internal/engineerr"
)

// classify maps a raw openai-go error to a typed LLMError, checking
// openai.Error status codes first and falling back to treating anything
// else as a network-layer failure (§4.4). Grounded on the teacher's
// pkg/aierrors IsRateLimitError/IsServerError/IsAuthError family, which
// inspect *openai.Error.StatusCode the same way.
func classify(err error) *engineerr.LLMError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return &engineerr.LLMError{Class: engineerr.LLMTransient, Err: err}
		case apiErr.StatusCode == 401, apiErr.StatusCode == 403:
			return &engineerr.LLMError{Class: engineerr.LLMFatal, Err: err}
		case apiErr.StatusCode == 404:
			return &engineerr.LLMError{Class: engineerr.LLMFatal, Err: err}
		case apiErr.StatusCode == 408:
			return &engineerr.LLMError{Class: engineerr.LLMTransient, Err: err}
		case apiErr.StatusCode >= 400:
			return &engineerr.LLMError{Class: engineerr.LLMFatal, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &engineerr.LLMError{Class: engineerr.LLMTransient, Err: err}
	}

	return &engineerr.LLMError{Class: engineerr.LLMTransient, Err: err}
}
