package shopapi

import "fmt"

// TransportError reports a request that could not complete or returned a
// non-2xx status. Status is 0 when no response was received.
type TransportError struct {
	Page   int
	Slug   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: status=%d: %v", e.subject(), e.Status, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) subject() string { return subject(e.Page, e.Slug) }

// MalformedError reports a body that is not the expected JSON structure.
type MalformedError struct {
	Page int
	Slug string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed response %s: %v", subject(e.Page, e.Slug), e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func subject(page int, slug string) string {
	if slug != "" {
		return "detail " + slug
	}
	return fmt.Sprintf("page %d", page)
}
