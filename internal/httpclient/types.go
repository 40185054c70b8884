package httpclient

import "fmt"

// HTTPError represents a non-200 response from the source API.
type HTTPError struct {
	StatusCode int
	URL        string
	Status     string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, status string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Status:     status,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %s for URL %s", e.Status, e.URL)
}
