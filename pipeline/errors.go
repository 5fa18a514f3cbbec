package pipeline

import "fmt"

// FetchError reports that the document bytes could not be retrieved. The
// routing layer maps it to a client error; it is never retried here.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// ProcessingError reports a fatal failure after a successful fetch: decode
// failures, rasterization failures, or any other mid-pipeline error. No
// partial result accompanies it.
type ProcessingError struct {
	URL   string
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("process %s: %s: %v", e.URL, e.Stage, e.Err)
	}
	return fmt.Sprintf("process %s: %v", e.URL, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
