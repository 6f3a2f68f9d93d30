package lastfm

import "fmt"

// apiError is an error object Last.fm returns in the response body.
type apiError struct {
	code    int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("last.fm error %d: %s", e.code, e.message)
}
