package service

// ValidationError indicates a malformed search request, rejected before any
// provider call is made.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

// FetchError indicates that every provider call for a search failed, so no
// result set could be assembled.
type FetchError struct {
	Message string
}

// Error implements the error interface.
func (e FetchError) Error() string {
	return e.Message
}
